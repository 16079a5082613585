package models

import (
	"time"
)

// ProviderToken holds the OAuth credentials for one provider connection.
// Kept out of ProviderConnection so credential columns never travel with
// connection listings; JSON tags hide every secret field.
type ProviderToken struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	ProviderConnectionID uint       `gorm:"not null;uniqueIndex" json:"provider_connection_id"`
	AccessToken          string     `gorm:"type:text" json:"-"`
	RefreshToken         string     `gorm:"type:text" json:"-"`
	Scope                string     `gorm:"type:varchar(255)" json:"-"`
	ExpiresAt            *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
