package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/metricsync"
)

// SyncController exposes the periodic batch sync trigger and the manual
// single-startup sync.
type SyncController struct {
	repos  *repository.Repositories
	engine *metricsync.Engine
}

func NewSyncController(repos *repository.Repositories, engine *metricsync.Engine) *SyncController {
	return &SyncController{
		repos:  repos,
		engine: engine,
	}
}

// HandleCronSync runs the batch sync across all syncable connections.
// Partial failure is expected: the response enumerates every connection's
// outcome and the call itself still returns 200.
func (sc *SyncController) HandleCronSync(c *fiber.Ctx) error {
	started := time.Now()

	results, err := sc.engine.SyncEligible(context.Background())
	if err != nil {
		log.Errorf("[Sync] loading connections failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Could not load connections")
	}

	summary := metricsync.Summarize(results)
	log.Infof("[Sync] batch finished in %s: %d synced, %d failed", time.Since(started).Round(time.Millisecond), summary.Synced, summary.Failed)

	return c.JSON(summary)
}

// HandleManualSync syncs one startup's connection on operator demand and
// returns the fetched metrics or the failure.
func (sc *SyncController) HandleManualSync(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Params("publicID"))

	startup, err := sc.repos.Startup.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with ID "+publicID)
		}
		log.Errorf("[Sync] startup lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	conn, err := sc.repos.Connection.GetSyncableByStartupID(startup.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusConflict, "no_connection", "Startup "+startup.Slug+" has no syncable provider connection")
		}
		log.Errorf("[Sync] connection lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	result := sc.engine.SyncOne(context.Background(), conn)
	if result.Status != metricsync.StatusSuccess {
		return c.Status(fiber.StatusBadGateway).JSON(result)
	}

	return c.JSON(result)
}
