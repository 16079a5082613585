package models

import (
	"time"
)

// SnapshotDateLayout is the storage format for history snapshot dates.
const SnapshotDateLayout = "2006-01-02"

// MetricsHistoryEntry is one dated, append-only metrics record per startup
// per day. The unique (startup_id, snapshot_date) index carries the
// at-most-one-per-day guarantee; writers insert with ON CONFLICT DO NOTHING.
type MetricsHistoryEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StartupID      uint      `gorm:"not null;index:ux_metrics_history_startup_date,unique,priority:1" json:"startup_id"`
	SnapshotDate   string    `gorm:"type:varchar(10);not null;index:ux_metrics_history_startup_date,unique,priority:2" json:"snapshot_date"`
	Currency       string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	MRR            float64   `gorm:"column:mrr;type:decimal(14,2);not null;default:0" json:"mrr"`
	TotalRevenue   float64   `gorm:"type:decimal(14,2);not null;default:0" json:"total_revenue"`
	Last30dRevenue float64   `gorm:"column:last30d_revenue;type:decimal(14,2);not null;default:0" json:"last30d_revenue"`
	Provider       string    `gorm:"type:varchar(20);not null" json:"provider"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MetricsHistoryEntry) TableName() string {
	return "startup_metrics_history"
}

// SnapshotDateFor returns t's calendar date in UTC in storage format.
func SnapshotDateFor(t time.Time) string {
	return t.UTC().Format(SnapshotDateLayout)
}
