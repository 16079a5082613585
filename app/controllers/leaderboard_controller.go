package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/pulseboard/pulseboard/internal/pkg/leaderboard"
)

// LeaderboardController serves the ranked list and the headline aggregates.
type LeaderboardController struct {
	service *leaderboard.Service
}

func NewLeaderboardController(service *leaderboard.Service) *LeaderboardController {
	return &LeaderboardController{service: service}
}

// HandleLeaderboard returns the ranked startups. Query parameters: country,
// category and provider (comma-separated sets), min_mrr / max_mrr bounds and
// the sort field (mrr, last30d_revenue, total_revenue).
func (lc *LeaderboardController) HandleLeaderboard(c *fiber.Ctx) error {
	filters := leaderboard.Filters{
		Countries:  queryList(c, "country"),
		Categories: queryList(c, "category"),
		Providers:  queryList(c, "provider"),
		MinMRR:     queryFloatPtr(c, "min_mrr"),
		MaxMRR:     queryFloatPtr(c, "max_mrr"),
		SortBy:     c.Query("sort", leaderboard.SortByMRR),
	}

	views, err := lc.service.ListRanked(filters)
	if err != nil {
		log.Errorf("[Leaderboard] listing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "The leaderboard is currently unavailable")
	}

	return c.JSON(fiber.Map{
		"count":   len(views),
		"results": views,
	})
}

// HandleCategories returns the distinct categories in use, for building
// filter controls.
func (lc *LeaderboardController) HandleCategories(c *fiber.Ctx) error {
	categories, err := lc.service.Categories()
	if err != nil {
		log.Errorf("[Leaderboard] categories failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Categories are currently unavailable")
	}

	return c.JSON(fiber.Map{"categories": categories})
}

// HandleAggregates returns the site-wide totals (cached).
func (lc *LeaderboardController) HandleAggregates(c *fiber.Ctx) error {
	agg, err := lc.service.Aggregates()
	if err != nil {
		log.Errorf("[Leaderboard] aggregates failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Aggregates are currently unavailable")
	}

	return c.JSON(agg)
}
