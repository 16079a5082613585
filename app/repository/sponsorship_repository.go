package repository

import (
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
)

// sponsorshipRepository implements the SponsorshipRepository interface
type sponsorshipRepository struct {
	db *gorm.DB
}

// NewSponsorshipRepository creates a new sponsorship repository instance
func NewSponsorshipRepository(db *gorm.DB) SponsorshipRepository {
	return &sponsorshipRepository{db: db}
}

// Create creates a new sponsorship in the database
func (r *sponsorshipRepository) Create(s *models.Sponsorship) error {
	return r.db.Create(s).Error
}

// GetByID retrieves a sponsorship by its ID
func (r *sponsorshipRepository) GetByID(id uint) (*models.Sponsorship, error) {
	var s models.Sponsorship
	err := r.db.First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByCheckoutSessionID retrieves a sponsorship by its checkout session ID
func (r *sponsorshipRepository) GetByCheckoutSessionID(sessionID string) (*models.Sponsorship, error) {
	var s models.Sponsorship
	err := r.db.Where("checkout_session_id = ?", sessionID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetBySubscriptionID retrieves a sponsorship by its billing subscription ID
func (r *sponsorshipRepository) GetBySubscriptionID(subscriptionID string) (*models.Sponsorship, error) {
	var s models.Sponsorship
	err := r.db.Where("stripe_subscription_id = ?", subscriptionID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestPendingByStartupAndType retrieves the most recent pending sponsorship
// for a (startup, type) pair. Fallback path for webhook activation when the
// checkout session ID lookup comes up empty.
func (r *sponsorshipRepository) LatestPendingByStartupAndType(startupID uint, sponsorshipType string) (*models.Sponsorship, error) {
	var s models.Sponsorship
	err := r.db.
		Where("startup_id = ? AND type = ? AND status = ?", startupID, sponsorshipType, models.SponsorshipStatusPending).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActiveByStartupIDs retrieves all active sponsorships for the given startups
func (r *sponsorshipRepository) ListActiveByStartupIDs(startupIDs []uint) ([]models.Sponsorship, error) {
	if len(startupIDs) == 0 {
		return nil, nil
	}

	var sponsorships []models.Sponsorship
	err := r.db.
		Where("startup_id IN ? AND status = ?", startupIDs, models.SponsorshipStatusActive).
		Find(&sponsorships).Error
	return sponsorships, err
}

// List retrieves sponsorships for the admin overview
func (r *sponsorshipRepository) List(offset, limit int) ([]models.Sponsorship, error) {
	var sponsorships []models.Sponsorship
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&sponsorships).Error
	return sponsorships, err
}

// Update updates an existing sponsorship in the database
func (r *sponsorshipRepository) Update(s *models.Sponsorship) error {
	return r.db.Save(s).Error
}

// Count returns the total number of sponsorships
func (r *sponsorshipRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Sponsorship{}).Count(&count).Error
	return count, err
}
