package router

import (
	"github.com/gofiber/fiber/v2"
)

// HttpRouter carries the routes external parties hit directly: the Stripe
// Connect OAuth hop and the billing webhook receiver. These stay outside
// the /api limiter so a burst of leaderboard traffic can never starve a
// webhook delivery.
type HttpRouter struct {
	ctrl Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/connect/stripe", h.ctrl.Connect.HandleStripeConnect)
	app.Get("/connect/stripe/callback", h.ctrl.Connect.HandleStripeCallback)

	app.Post("/webhooks/stripe", h.ctrl.Sponsorship.HandleWebhook)
}

func NewHttpRouter(ctrl Controllers) *HttpRouter {
	return &HttpRouter{ctrl: ctrl}
}
