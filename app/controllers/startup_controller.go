package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/logoprocessor"
)

const (
	defaultHistoryDays = 90
	maxHistoryDays     = 365
)

// StartupController serves the public submission and read endpoints.
type StartupController struct {
	repos      *repository.Repositories
	uploadsDir string
}

func NewStartupController(repos *repository.Repositories, uploadsDir string) *StartupController {
	return &StartupController{
		repos:      repos,
		uploadsDir: uploadsDir,
	}
}

// HandleCreate registers a new startup from the submission form. The profile
// is immutable afterwards except through the admin update endpoint. Logo
// processing is best-effort: a broken image never blocks the submission.
func (sc *StartupController) HandleCreate(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	websiteURL := strings.TrimSpace(c.FormValue("website_url"))
	countryCode := strings.ToUpper(strings.TrimSpace(c.FormValue("country_code")))
	category := strings.ToLower(strings.TrimSpace(c.FormValue("category")))
	description := strings.TrimSpace(c.FormValue("description"))

	startup, err := models.NewStartup(name, websiteURL, countryCode, category, description)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			return jsonError(c, fiber.StatusBadRequest, "validation_failed", "Invalid value for field "+field.Field())
		}
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	if startup.Slug == "" {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "The name does not produce a usable slug")
	}

	exists, err := sc.repos.Startup.SlugExists(startup.Slug)
	if err != nil {
		log.Errorf("[Startup] slug check failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not verify the startup name")
	}
	if exists {
		return jsonError(c, fiber.StatusConflict, "slug_taken", "A startup named \""+startup.Slug+"\" is already listed")
	}

	if err := sc.repos.Startup.Create(startup); err != nil {
		log.Errorf("[Startup] create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "The startup could not be saved")
	}

	if file, err := c.FormFile("logo"); err == nil && file != nil {
		sc.attachLogo(c, startup, file)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"startup": startup})
}

// attachLogo validates, resizes and stores the uploaded logo, then records
// the variant paths on the startup row. Every failure is logged and ignored.
func (sc *StartupController) attachLogo(c *fiber.Ctx, startup *models.Startup, file *multipart.FileHeader) {
	src, err := file.Open()
	if err != nil {
		log.Warnf("[Startup] opening logo upload for %s failed: %v", startup.Slug, err)
		return
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	src.Close()

	if _, err := logoprocessor.ValidateLogoBySniff(file.Filename, head[:n]); err != nil {
		log.Warnf("[Startup] logo for %s rejected: %v", startup.Slug, err)
		return
	}

	tmpPath := filepath.Join(os.TempDir(), "logo-"+startup.Slug+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tmpPath); err != nil {
		log.Warnf("[Startup] saving logo upload for %s failed: %v", startup.Slug, err)
		return
	}
	defer os.Remove(tmpPath)

	result, err := logoprocessor.ProcessLogo(tmpPath, sc.uploadsDir, startup.Slug)
	if err != nil {
		log.Warnf("[Startup] processing logo for %s failed: %v", startup.Slug, err)
		return
	}

	startup.LogoPath = result.LogoPath
	startup.LogoWebpPath = result.LogoWebpPath
	if err := sc.repos.Startup.Update(startup); err != nil {
		log.Warnf("[Startup] storing logo paths for %s failed: %v", startup.Slug, err)
	}
}

type connectionSummary struct {
	Provider     string     `json:"provider"`
	Status       string     `json:"status"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// HandleGetBySlug returns the public detail view: the startup, its current
// metrics, its active sponsorship and a token-free connection summary.
func (sc *StartupController) HandleGetBySlug(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))

	startup, err := sc.repos.Startup.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with slug "+slug)
		}
		log.Errorf("[Startup] lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	view := fiber.Map{"startup": startup}

	if snap, err := sc.repos.Metrics.GetSnapshotByStartupID(startup.ID); err == nil {
		view["metrics"] = snap
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Startup] loading snapshot for %s failed: %v", slug, err)
	}

	if active, err := sc.repos.Sponsorship.ListActiveByStartupIDs([]uint{startup.ID}); err == nil && len(active) > 0 {
		view["sponsorship"] = fiber.Map{
			"type":       active[0].Type,
			"start_date": active[0].StartDate,
		}
	} else if err != nil {
		log.Warnf("[Startup] loading sponsorship for %s failed: %v", slug, err)
	}

	conns, err := sc.repos.Connection.ListByStartupID(startup.ID)
	if err != nil {
		log.Warnf("[Startup] loading connections for %s failed: %v", slug, err)
	}
	summaries := make([]connectionSummary, 0, len(conns))
	for _, conn := range conns {
		summaries = append(summaries, connectionSummary{
			Provider:     conn.Provider,
			Status:       conn.Status,
			ConnectedAt:  conn.ConnectedAt,
			LastSyncedAt: conn.LastSyncedAt,
		})
	}
	view["connections"] = summaries

	return c.JSON(view)
}

// HandleHistory returns the dated metric entries for charts, newest first.
func (sc *StartupController) HandleHistory(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))

	startup, err := sc.repos.Startup.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with slug "+slug)
		}
		log.Errorf("[Startup] lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	days := queryIntDefault(c, "days", defaultHistoryDays)
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	entries, err := sc.repos.Metrics.HistoryForStartup(startup.ID, days)
	if err != nil {
		log.Errorf("[Startup] loading history for %s failed: %v", slug, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "History lookup failed")
	}

	return c.JSON(fiber.Map{
		"slug":    startup.Slug,
		"days":    days,
		"entries": entries,
	})
}
