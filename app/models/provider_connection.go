package models

import (
	"time"
)

// Supported billing providers.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
)

// Connection lifecycle states.
const (
	ConnectionStatusConnected = "connected"
	ConnectionStatusRevoked   = "revoked"
	ConnectionStatusError     = "error"
)

// ProviderConnection links a startup to exactly one account per billing
// provider. Tokens live in ProviderToken so connection rows can be listed
// without touching credentials.
type ProviderConnection struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	StartupID         uint       `gorm:"not null;index:ux_provider_connections_startup_provider,unique,priority:1" json:"startup_id"`
	Provider          string     `gorm:"type:varchar(20);not null;index:ux_provider_connections_startup_provider,unique,priority:2" json:"provider"`
	ProviderAccountID string     `gorm:"type:varchar(191);not null;index" json:"provider_account_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'connected';index" json:"status"`
	ConnectedAt       *time.Time `gorm:"type:timestamp;default:null" json:"connected_at"`
	LastSyncedAt      *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at"`
	LastSyncError     string     `gorm:"type:text" json:"last_sync_error,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Startup *Startup       `gorm:"foreignKey:StartupID" json:"-"`
	Token   *ProviderToken `gorm:"foreignKey:ProviderConnectionID" json:"-"`
}

// IsSyncable reports whether the sync engine should pick this connection up.
func (c *ProviderConnection) IsSyncable() bool {
	return c.Status == ConnectionStatusConnected || c.Status == ConnectionStatusError
}

func ValidProvider(p string) bool {
	switch p {
	case ProviderStripe, ProviderPaddle:
		return true
	}

	return false
}
