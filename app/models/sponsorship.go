package models

import (
	"time"
)

// Sponsorship tiers. Featured placements rank first site-wide, category
// placements rank first within the startup's own category listing.
const (
	SponsorshipTypeFeatured = "featured"
	SponsorshipTypeCategory = "category"
)

// Sponsorship lifecycle states. Expired exists in the schema for operators
// who end placements by hand; no webhook transition sets it.
const (
	SponsorshipStatusPending   = "pending"
	SponsorshipStatusActive    = "active"
	SponsorshipStatusCancelled = "cancelled"
	SponsorshipStatusExpired   = "expired"
)

// Sponsorship is one paid placement purchase. Rows start out pending at
// checkout creation and are driven to active/cancelled by billing webhooks.
type Sponsorship struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	StartupID            uint       `gorm:"not null;index" json:"startup_id"`
	Type                 string     `gorm:"type:varchar(30);not null;index" json:"type"`
	Category             string     `gorm:"type:varchar(100);default:''" json:"category,omitempty"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:''" json:"-"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);index" json:"-"`
	StripePriceID        string     `gorm:"type:varchar(191);default:''" json:"-"`
	CheckoutSessionID    string     `gorm:"type:varchar(191);index" json:"-"`
	StartDate            *time.Time `gorm:"type:timestamp;default:null" json:"start_date"`
	EndDate              *time.Time `gorm:"type:timestamp;default:null" json:"end_date"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Startup *Startup `gorm:"foreignKey:StartupID" json:"-"`
}

func ValidSponsorshipType(t string) bool {
	switch t {
	case SponsorshipTypeFeatured, SponsorshipTypeCategory:
		return true
	}

	return false
}

// InEffect reports whether this sponsorship currently influences ranking.
func (s *Sponsorship) InEffect() bool {
	return s.Status == SponsorshipStatusActive
}
