package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pulseboard/pulseboard/app/controllers"
)

// Router installs one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles every handler group the routers mount. The bootstrap
// constructs these with their repositories and services and hands them in;
// routers never reach for globals.
type Controllers struct {
	Connect     *controllers.ConnectController
	Startup     *controllers.StartupController
	Leaderboard *controllers.LeaderboardController
	Sponsorship *controllers.SponsorshipController
	Sync        *controllers.SyncController
	Admin       *controllers.AdminController
}

// InstallRouter mounts the browser/provider-facing routes first, then the
// rate-limited JSON API.
func InstallRouter(app *fiber.App, ctrl Controllers) {
	setup(app, NewHttpRouter(ctrl), NewApiRouter(ctrl))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
