package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulseboard/pulseboard/app/models"
)

// connectionRepository implements the ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// ConnectWithToken upserts connection and token as one transaction so a
// failed token write never leaves a connection without credentials. The
// (startup_id, provider) pair is unique, so a second OAuth callback for the
// same pair updates in place instead of inserting.
func (r *connectionRepository) ConnectWithToken(conn *models.ProviderConnection, token *models.ProviderToken) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertConnection(tx, conn); err != nil {
			return err
		}
		token.ProviderConnectionID = conn.ID
		return upsertToken(tx, token)
	})
}

func upsertConnection(db *gorm.DB, conn *models.ProviderConnection) error {
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "startup_id"},
			{Name: "provider"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_account_id",
			"status",
			"connected_at",
			"last_sync_error",
			"updated_at",
		}),
	}).Create(conn).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("startup_id = ? AND provider = ?", conn.StartupID, conn.Provider).
		First(conn).Error
}

func upsertToken(db *gorm.DB, token *models.ProviderToken) error {
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_connection_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token",
			"refresh_token",
			"scope",
			"expires_at",
			"updated_at",
		}),
	}).Create(token).Error; err != nil {
		return err
	}

	return db.Where("provider_connection_id = ?", token.ProviderConnectionID).
		First(token).Error
}

// GetSyncableByStartupID retrieves the startup's connection eligible for a
// manual sync, preferring the most recently connected one.
func (r *connectionRepository) GetSyncableByStartupID(startupID uint) (*models.ProviderConnection, error) {
	var conn models.ProviderConnection
	err := r.db.
		Where("startup_id = ? AND status IN ?", startupID, []string{models.ConnectionStatusConnected, models.ConnectionStatusError}).
		Order("connected_at DESC").
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByProviderAccountID retrieves a connection by the provider-side account ID
func (r *connectionRepository) GetByProviderAccountID(provider, accountID string) (*models.ProviderConnection, error) {
	var conn models.ProviderConnection
	err := r.db.Where("provider = ? AND provider_account_id = ?", provider, accountID).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetTokenByConnectionID retrieves the token row for a connection
func (r *connectionRepository) GetTokenByConnectionID(connectionID uint) (*models.ProviderToken, error) {
	var token models.ProviderToken
	err := r.db.Where("provider_connection_id = ?", connectionID).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListSyncable retrieves all connections the periodic sync should process
func (r *connectionRepository) ListSyncable() ([]models.ProviderConnection, error) {
	var conns []models.ProviderConnection
	err := r.db.
		Where("status IN ?", []string{models.ConnectionStatusConnected, models.ConnectionStatusError}).
		Order("id ASC").
		Find(&conns).Error
	return conns, err
}

// ListByStartupID retrieves all connections of one startup
func (r *connectionRepository) ListByStartupID(startupID uint) ([]models.ProviderConnection, error) {
	var conns []models.ProviderConnection
	err := r.db.Where("startup_id = ?", startupID).Order("provider ASC").Find(&conns).Error
	return conns, err
}

// List retrieves connections for the admin overview
func (r *connectionRepository) List(offset, limit int) ([]models.ProviderConnection, error) {
	var conns []models.ProviderConnection
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&conns).Error
	return conns, err
}

// Count returns the total number of connections
func (r *connectionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ProviderConnection{}).Count(&count).Error
	return count, err
}

// RecordSyncSuccess stamps last_synced_at, clears any previous sync error
// and restores the connected status.
func (r *connectionRepository) RecordSyncSuccess(connectionID uint, syncedAt time.Time) error {
	return r.db.Model(&models.ProviderConnection{}).Where("id = ?", connectionID).Updates(map[string]interface{}{
		"status":          models.ConnectionStatusConnected,
		"last_synced_at":  &syncedAt,
		"last_sync_error": "",
	}).Error
}

// RecordSyncFailure stores the failure reason and moves the connection into
// the given status (error for transient failures, revoked when the provider
// rejected our credentials).
func (r *connectionRepository) RecordSyncFailure(connectionID uint, status, syncError string) error {
	return r.db.Model(&models.ProviderConnection{}).Where("id = ?", connectionID).Updates(map[string]interface{}{
		"status":          status,
		"last_sync_error": syncError,
	}).Error
}

// UpdateStatus sets the connection status
func (r *connectionRepository) UpdateStatus(connectionID uint, status string) error {
	return r.db.Model(&models.ProviderConnection{}).Where("id = ?", connectionID).Update("status", status).Error
}
