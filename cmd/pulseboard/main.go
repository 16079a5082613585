package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pulseboard/pulseboard/app/controllers"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/cache"
	"github.com/pulseboard/pulseboard/internal/pkg/constants"
	"github.com/pulseboard/pulseboard/internal/pkg/database"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
	"github.com/pulseboard/pulseboard/internal/pkg/leaderboard"
	"github.com/pulseboard/pulseboard/internal/pkg/metricsync"
	"github.com/pulseboard/pulseboard/internal/pkg/providers"
	"github.com/pulseboard/pulseboard/internal/pkg/router"
	"github.com/pulseboard/pulseboard/internal/pkg/s3archive"
	"github.com/pulseboard/pulseboard/internal/pkg/sponsoring"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/pulseboard to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	repos := repository.NewRepositories(db)

	registry := providers.NewDefaultRegistry()

	// Raw payload archiving is optional; the engine runs without it.
	var archiver metricsync.PayloadArchiver
	if archiveCfg, err := s3archive.LoadConfig(); err != nil {
		log.Printf("metrics archive disabled: %v", err)
	} else if archiveCfg.Enabled {
		client, err := s3archive.NewClient(archiveCfg)
		if err != nil {
			log.Printf("metrics archive disabled: %v", err)
		} else {
			archiver = client
		}
	}

	engine := metricsync.NewEngine(registry, repos.Connection, repos.Metrics, archiver)
	board := leaderboard.NewService(repos.Startup, repos.Metrics, repos.Sponsorship)
	sponsorService := sponsoring.NewService(
		sponsoring.ConfigFromEnv(),
		repos.Startup,
		repos.Sponsorship,
		repos.Connection,
		sponsoring.NewStripeCheckoutClientFromEnv(),
	)
	ctrl := router.Controllers{
		Connect:     controllers.NewConnectController(repos, providers.NewStripeConnectClientFromEnv(), engine),
		Startup:     controllers.NewStartupController(repos, basePath+constants.UploadsPath),
		Leaderboard: controllers.NewLeaderboardController(board),
		Sponsorship: controllers.NewSponsorshipController(sponsorService),
		Sync:        controllers.NewSyncController(repos, engine),
		Admin:       controllers.NewAdminController(repos, sponsorService),
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // logo uploads only
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// startup logos
	app.Static(constants.UploadsRoute, basePath+constants.UploadsPath, fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, ctrl)

	return app
}
