package models

import (
	"time"
)

// MetricsSnapshot is the single current metrics row per startup. Every sync
// overwrites it in place; history lives in MetricsHistoryEntry.
type MetricsSnapshot struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	StartupID            uint       `gorm:"not null;uniqueIndex" json:"startup_id"`
	Currency             string     `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	MRR                  float64    `gorm:"column:mrr;type:decimal(14,2);not null;default:0" json:"mrr"`
	TotalRevenue         float64    `gorm:"type:decimal(14,2);not null;default:0" json:"total_revenue"`
	Last30dRevenue       float64    `gorm:"column:last30d_revenue;type:decimal(14,2);not null;default:0" json:"last30d_revenue"`
	Provider             string     `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderLastSyncedAt *time.Time `gorm:"type:timestamp;default:null" json:"provider_last_synced_at"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MetricsSnapshot) TableName() string {
	return "startup_metrics_current"
}
