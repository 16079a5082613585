package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
)

// StartupRepository defines the interface for startup-related database operations
type StartupRepository interface {
	Create(startup *models.Startup) error
	GetByID(id uint) (*models.Startup, error)
	GetByPublicID(publicID string) (*models.Startup, error)
	GetBySlug(slug string) (*models.Startup, error)
	List(offset, limit int) ([]models.Startup, error)
	ListFiltered(countries, categories []string) ([]models.Startup, error)
	Update(startup *models.Startup) error
	Delete(id uint) error
	Count() (int64, error)
	SlugExists(slug string) (bool, error)
	Categories() ([]string, error)
}

// ConnectionRepository defines the interface for provider connection and token operations
type ConnectionRepository interface {
	ConnectWithToken(conn *models.ProviderConnection, token *models.ProviderToken) error
	GetSyncableByStartupID(startupID uint) (*models.ProviderConnection, error)
	GetByProviderAccountID(provider, accountID string) (*models.ProviderConnection, error)
	GetTokenByConnectionID(connectionID uint) (*models.ProviderToken, error)
	ListSyncable() ([]models.ProviderConnection, error)
	ListByStartupID(startupID uint) ([]models.ProviderConnection, error)
	List(offset, limit int) ([]models.ProviderConnection, error)
	Count() (int64, error)
	RecordSyncSuccess(connectionID uint, syncedAt time.Time) error
	RecordSyncFailure(connectionID uint, status, syncError string) error
	UpdateStatus(connectionID uint, status string) error
}

// MetricsRepository defines the interface for snapshot and history operations
type MetricsRepository interface {
	UpsertSnapshot(snap *models.MetricsSnapshot) error
	GetSnapshotByStartupID(startupID uint) (*models.MetricsSnapshot, error)
	ListSnapshotsByStartupIDs(startupIDs []uint) ([]models.MetricsSnapshot, error)
	AppendHistoryIfAbsent(entry *models.MetricsHistoryEntry) (bool, error)
	HistoryForStartup(startupID uint, days int) ([]models.MetricsHistoryEntry, error)
	TotalMRR() (float64, error)
}

// SponsorshipRepository defines the interface for sponsorship records
type SponsorshipRepository interface {
	Create(s *models.Sponsorship) error
	GetByID(id uint) (*models.Sponsorship, error)
	GetByCheckoutSessionID(sessionID string) (*models.Sponsorship, error)
	GetBySubscriptionID(subscriptionID string) (*models.Sponsorship, error)
	LatestPendingByStartupAndType(startupID uint, sponsorshipType string) (*models.Sponsorship, error)
	ListActiveByStartupIDs(startupIDs []uint) ([]models.Sponsorship, error)
	List(offset, limit int) ([]models.Sponsorship, error)
	Update(s *models.Sponsorship) error
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Startup     StartupRepository
	Connection  ConnectionRepository
	Metrics     MetricsRepository
	Sponsorship SponsorshipRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Startup:     NewStartupRepository(db),
		Connection:  NewConnectionRepository(db),
		Metrics:     NewMetricsRepository(db),
		Sponsorship: NewSponsorshipRepository(db),
	}
}
