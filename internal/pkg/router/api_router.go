package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/pulseboard/pulseboard/internal/pkg/middleware"
	"github.com/pulseboard/pulseboard/internal/pkg/ratelimit"
)

type ApiRouter struct {
	ctrl Controllers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    ratelimit.NewStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "PulseBoard API",
		})
	})

	v1 := api.Group("/v1")

	// Public directory and ranking endpoints
	v1.Post("/startups", h.ctrl.Startup.HandleCreate)
	v1.Get("/startups/:slug", h.ctrl.Startup.HandleGetBySlug)
	v1.Get("/startups/:slug/history", h.ctrl.Startup.HandleHistory)
	v1.Get("/leaderboard", h.ctrl.Leaderboard.HandleLeaderboard)
	v1.Get("/categories", h.ctrl.Leaderboard.HandleCategories)
	v1.Get("/aggregates", h.ctrl.Leaderboard.HandleAggregates)

	// Sponsorship checkout
	v1.Post("/sponsorships/checkout", h.ctrl.Sponsorship.HandleCreateCheckout)

	// Scheduler-triggered batch sync
	v1.Post("/cron/sync", middleware.CronAuth(), h.ctrl.Sync.HandleCronSync)

	// Operator endpoints
	admin := v1.Group("/admin", middleware.AdminAuth())
	admin.Get("/startups", h.ctrl.Admin.HandleListStartups)
	admin.Put("/startups/:publicID", h.ctrl.Admin.HandleUpdateStartup)
	admin.Delete("/startups/:publicID", h.ctrl.Admin.HandleDeleteStartup)
	admin.Get("/connections", h.ctrl.Admin.HandleListConnections)
	admin.Get("/sponsorships", h.ctrl.Admin.HandleListSponsorships)
	admin.Post("/sponsorships/:id/deactivate", h.ctrl.Admin.HandleDeactivateSponsorship)
	admin.Post("/sync/:publicID", h.ctrl.Sync.HandleManualSync)
}

func NewApiRouter(ctrl Controllers) *ApiRouter {
	return &ApiRouter{ctrl: ctrl}
}
