package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/sponsoring"
)

const (
	defaultAdminPageSize = 50
	maxAdminPageSize     = 200
)

// AdminController serves the token-protected operator endpoints: startup
// inventory and profile corrections, connection and sponsorship inventories,
// and manual sponsorship deactivation.
type AdminController struct {
	repos       *repository.Repositories
	sponsorship *sponsoring.Service
}

func NewAdminController(repos *repository.Repositories, sponsorship *sponsoring.Service) *AdminController {
	return &AdminController{
		repos:       repos,
		sponsorship: sponsorship,
	}
}

// startupUpdateRequest carries the admin-editable profile fields. Absent
// fields keep their stored value; the slug never changes.
type startupUpdateRequest struct {
	Name        *string `json:"name"`
	WebsiteURL  *string `json:"website_url"`
	CountryCode *string `json:"country_code"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

// HandleUpdateStartup applies a partial profile update to an existing
// startup, addressed by public ID.
func (ac *AdminController) HandleUpdateStartup(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Params("publicID"))

	startup, err := ac.repos.Startup.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with ID "+publicID)
		}
		log.Errorf("[Admin] startup lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	var req startupUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	if req.Name != nil {
		startup.Name = strings.TrimSpace(*req.Name)
	}
	if req.WebsiteURL != nil {
		startup.WebsiteURL = strings.TrimSpace(*req.WebsiteURL)
	}
	if req.CountryCode != nil {
		startup.CountryCode = strings.ToUpper(strings.TrimSpace(*req.CountryCode))
	}
	if req.Category != nil {
		startup.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Description != nil {
		startup.Description = strings.TrimSpace(*req.Description)
	}

	if err := startup.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return jsonError(c, fiber.StatusBadRequest, "validation_failed", "Invalid value for field "+verrs[0].Field())
		}
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "Startup data is invalid")
	}

	if err := ac.repos.Startup.Update(startup); err != nil {
		log.Errorf("[Admin] updating startup %s failed: %v", startup.Slug, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not save startup")
	}

	return c.JSON(fiber.Map{"startup": startup})
}

// HandleDeleteStartup removes a startup from the board. The delete is soft,
// so the slug stays reserved by the removed row.
func (ac *AdminController) HandleDeleteStartup(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Params("publicID"))

	startup, err := ac.repos.Startup.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with ID "+publicID)
		}
		log.Errorf("[Admin] startup lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	if err := ac.repos.Startup.Delete(startup.ID); err != nil {
		log.Errorf("[Admin] deleting startup %s failed: %v", startup.Slug, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not delete startup")
	}

	// The periodic sync selects connections without joining startups, so the
	// removed startup's connections must be taken out of rotation here.
	conns, err := ac.repos.Connection.ListByStartupID(startup.ID)
	if err != nil {
		log.Warnf("[Admin] loading connections of removed startup %s failed: %v", startup.Slug, err)
	}
	for _, conn := range conns {
		if err := ac.repos.Connection.UpdateStatus(conn.ID, models.ConnectionStatusRevoked); err != nil {
			log.Warnf("[Admin] revoking connection %d failed: %v", conn.ID, err)
		}
	}

	log.Infof("[Admin] startup %s removed from the board", startup.Slug)
	return c.JSON(fiber.Map{"deleted": startup.Slug})
}

// HandleListStartups returns a page of startups for the operator inventory,
// newest first.
func (ac *AdminController) HandleListStartups(c *fiber.Ctx) error {
	offset, limit := adminPage(c)

	startups, err := ac.repos.Startup.List(offset, limit)
	if err != nil {
		log.Errorf("[Admin] listing startups failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load startups")
	}

	total, err := ac.repos.Startup.Count()
	if err != nil {
		log.Errorf("[Admin] counting startups failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load startups")
	}

	return c.JSON(fiber.Map{
		"total":    total,
		"startups": startups,
	})
}

// HandleListConnections returns a page of provider connections. Token rows
// are never joined in; this endpoint shows status, not credentials.
func (ac *AdminController) HandleListConnections(c *fiber.Ctx) error {
	offset, limit := adminPage(c)

	connections, err := ac.repos.Connection.List(offset, limit)
	if err != nil {
		log.Errorf("[Admin] listing connections failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load connections")
	}

	total, err := ac.repos.Connection.Count()
	if err != nil {
		log.Errorf("[Admin] counting connections failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load connections")
	}

	return c.JSON(fiber.Map{
		"total":       total,
		"connections": connections,
	})
}

// HandleListSponsorships returns a page of sponsorship records across all
// startups and states.
func (ac *AdminController) HandleListSponsorships(c *fiber.Ctx) error {
	offset, limit := adminPage(c)

	sponsorships, err := ac.repos.Sponsorship.List(offset, limit)
	if err != nil {
		log.Errorf("[Admin] listing sponsorships failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load sponsorships")
	}

	total, err := ac.repos.Sponsorship.Count()
	if err != nil {
		log.Errorf("[Admin] counting sponsorships failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load sponsorships")
	}

	return c.JSON(fiber.Map{
		"total":        total,
		"sponsorships": sponsorships,
	})
}

// HandleDeactivateSponsorship ends an active sponsorship by hand, for cases
// where no billing webhook will arrive.
func (ac *AdminController) HandleDeactivateSponsorship(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Sponsorship ID must be numeric")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sponsorship, err := ac.sponsorship.Deactivate(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "sponsorship_not_found", "No sponsorship with ID "+c.Params("id"))
		}
		log.Errorf("[Admin] deactivating sponsorship %d failed: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not deactivate sponsorship")
	}

	return c.JSON(fiber.Map{"sponsorship": sponsorship})
}

// adminPage reads offset/limit pagination with bounds applied.
func adminPage(c *fiber.Ctx) (offset, limit int) {
	offset = queryIntDefault(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	limit = queryIntDefault(c, "limit", defaultAdminPageSize)
	if limit <= 0 {
		limit = defaultAdminPageSize
	}
	if limit > maxAdminPageSize {
		limit = maxAdminPageSize
	}

	return offset, limit
}
