package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulseboard/pulseboard/app/models"
)

// metricsRepository implements the MetricsRepository interface
type metricsRepository struct {
	db *gorm.DB
}

// NewMetricsRepository creates a new metrics repository instance
func NewMetricsRepository(db *gorm.DB) MetricsRepository {
	return &metricsRepository{db: db}
}

// UpsertSnapshot overwrites the current metrics row for the snapshot's
// startup. Exactly one row per startup exists at any time.
func (r *metricsRepository) UpsertSnapshot(snap *models.MetricsSnapshot) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "startup_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"currency",
			"mrr",
			"total_revenue",
			"last30d_revenue",
			"provider",
			"provider_last_synced_at",
			"updated_at",
		}),
	}).Create(snap).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("startup_id = ?", snap.StartupID).First(snap).Error
}

// GetSnapshotByStartupID retrieves the current metrics row for a startup
func (r *metricsRepository) GetSnapshotByStartupID(startupID uint) (*models.MetricsSnapshot, error) {
	var snap models.MetricsSnapshot
	err := r.db.Where("startup_id = ?", startupID).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshotsByStartupIDs retrieves the snapshots for the given startups.
// Startups without a snapshot simply have no row in the result.
func (r *metricsRepository) ListSnapshotsByStartupIDs(startupIDs []uint) ([]models.MetricsSnapshot, error) {
	if len(startupIDs) == 0 {
		return nil, nil
	}

	var snaps []models.MetricsSnapshot
	err := r.db.Where("startup_id IN ?", startupIDs).Find(&snaps).Error
	return snaps, err
}

// AppendHistoryIfAbsent inserts the history entry unless one already exists
// for (startup_id, snapshot_date). Returns whether a row was inserted. The
// unique index plus DO NOTHING makes this safe under concurrent syncs.
func (r *metricsRepository) AppendHistoryIfAbsent(entry *models.MetricsHistoryEntry) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "startup_id"},
			{Name: "snapshot_date"},
		},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}

// HistoryForStartup retrieves up to days most recent history entries,
// newest first.
func (r *metricsRepository) HistoryForStartup(startupID uint, days int) ([]models.MetricsHistoryEntry, error) {
	var entries []models.MetricsHistoryEntry
	query := r.db.Where("startup_id = ?", startupID).Order("snapshot_date DESC")
	if days > 0 {
		query = query.Limit(days)
	}
	err := query.Find(&entries).Error
	return entries, err
}

// TotalMRR sums the current MRR across all startups
func (r *metricsRepository) TotalMRR() (float64, error) {
	var total float64
	err := r.db.Model(&models.MetricsSnapshot{}).
		Select("COALESCE(SUM(mrr), 0)").
		Scan(&total).Error
	return total, err
}
