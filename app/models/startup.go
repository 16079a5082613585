package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/internal/pkg/slugify"
)

// Startup is a publicly listed company on the leaderboard. Profile fields are
// set once at submission and only change through administrative updates.
type Startup struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	PublicID     string         `gorm:"type:varchar(36);uniqueIndex" json:"public_id"`
	Name         string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug         string         `gorm:"uniqueIndex;type:varchar(160)" json:"slug" validate:"required,min=2,max=160"`
	WebsiteURL   string         `gorm:"type:varchar(255)" json:"website_url" validate:"required,url,max=255"`
	CountryCode  string         `gorm:"type:varchar(2);index" json:"country_code" validate:"required,len=2,alpha"`
	Category     string         `gorm:"type:varchar(100);index" json:"category" validate:"required,min=2,max=100"`
	Description  string         `gorm:"type:text" json:"description" validate:"max=2000"`
	LogoPath     string         `gorm:"type:varchar(255);default:''" json:"logo_path"`
	LogoWebpPath string         `gorm:"type:varchar(255);default:''" json:"logo_webp_path"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Startup) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// NewStartup builds an unsaved startup with a generated public ID and slug.
func NewStartup(name, websiteURL, countryCode, category, description string) (*Startup, error) {
	s := &Startup{
		PublicID:    uuid.NewString(),
		Name:        name,
		Slug:        slugify.Make(name),
		WebsiteURL:  websiteURL,
		CountryCode: countryCode,
		Category:    category,
		Description: description,
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}
