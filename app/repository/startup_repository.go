package repository

import (
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
)

// startupRepository implements the StartupRepository interface
type startupRepository struct {
	db *gorm.DB
}

// NewStartupRepository creates a new startup repository instance
func NewStartupRepository(db *gorm.DB) StartupRepository {
	return &startupRepository{db: db}
}

// Create creates a new startup in the database
func (r *startupRepository) Create(startup *models.Startup) error {
	return r.db.Create(startup).Error
}

// GetByID retrieves a startup by its ID
func (r *startupRepository) GetByID(id uint) (*models.Startup, error) {
	var startup models.Startup
	err := r.db.First(&startup, id).Error
	if err != nil {
		return nil, err
	}
	return &startup, nil
}

// GetByPublicID retrieves a startup by its public UUID
func (r *startupRepository) GetByPublicID(publicID string) (*models.Startup, error) {
	var startup models.Startup
	err := r.db.Where("public_id = ?", publicID).First(&startup).Error
	if err != nil {
		return nil, err
	}
	return &startup, nil
}

// GetBySlug retrieves a startup by its slug
func (r *startupRepository) GetBySlug(slug string) (*models.Startup, error) {
	var startup models.Startup
	err := r.db.Where("slug = ?", slug).First(&startup).Error
	if err != nil {
		return nil, err
	}
	return &startup, nil
}

// List retrieves startups ordered by creation date
func (r *startupRepository) List(offset, limit int) ([]models.Startup, error) {
	var startups []models.Startup
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&startups).Error
	return startups, err
}

// ListFiltered retrieves all startups matching the given country and category
// sets. Empty sets mean "no filter on that dimension".
func (r *startupRepository) ListFiltered(countries, categories []string) ([]models.Startup, error) {
	query := r.db.Model(&models.Startup{})
	if len(countries) > 0 {
		query = query.Where("country_code IN ?", countries)
	}
	if len(categories) > 0 {
		query = query.Where("category IN ?", categories)
	}

	var startups []models.Startup
	err := query.Order("created_at ASC").Find(&startups).Error
	return startups, err
}

// Update updates an existing startup in the database
func (r *startupRepository) Update(startup *models.Startup) error {
	return r.db.Save(startup).Error
}

// Delete soft deletes a startup by its ID
func (r *startupRepository) Delete(id uint) error {
	return r.db.Delete(&models.Startup{}, id).Error
}

// Count returns the total number of startups
func (r *startupRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Startup{}).Count(&count).Error
	return count, err
}

// SlugExists checks if a slug already exists
func (r *startupRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Startup{}).Unscoped().Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// Categories returns the distinct category names currently in use
func (r *startupRepository) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&models.Startup{}).Distinct("category").Order("category ASC").Pluck("category", &categories).Error
	return categories, err
}
