package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/pulseboard/pulseboard/internal/pkg/env"
	"github.com/pulseboard/pulseboard/internal/pkg/sponsoring"
)

// SponsorshipController exposes checkout creation and the billing webhook.
type SponsorshipController struct {
	service *sponsoring.Service
}

func NewSponsorshipController(service *sponsoring.Service) *SponsorshipController {
	return &SponsorshipController{service: service}
}

type checkoutRequest struct {
	StartupSlug string `json:"startupSlug"`
	Type        string `json:"type"`
}

// HandleCreateCheckout opens a hosted subscription checkout for a
// sponsorship tier and records the pending placement.
func (pc *SponsorshipController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Body must contain startupSlug and type")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := pc.service.CreateCheckout(ctx, req.StartupSlug, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, sponsoring.ErrStartupNotFound):
			return jsonError(c, fiber.StatusNotFound, "startup_not_found", "No startup with slug "+req.StartupSlug)
		case errors.Is(err, sponsoring.ErrUnknownType):
			return jsonError(c, fiber.StatusBadRequest, "unknown_type", "Unknown sponsorship type "+req.Type)
		case errors.Is(err, sponsoring.ErrPriceNotConfigured):
			return jsonError(c, fiber.StatusBadRequest, "price_not_configured", "Sponsorship type "+req.Type+" has no configured price")
		default:
			log.Errorf("[Sponsorship] checkout creation failed: %v", err)
			return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "The checkout could not be created")
		}
	}

	return c.JSON(result)
}

// HandleWebhook receives billing events. The signature is verified before
// anything else; unverifiable payloads are rejected without processing.
func (pc *SponsorshipController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if !sponsoring.VerifyStripeWebhookSignature(rawBody, signature, secret, sponsoring.DefaultSignatureTolerance) {
		log.Warnf("[Sponsorship] rejected webhook with invalid signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := pc.service.HandleWebhookEvent(ctx, rawBody); err != nil {
		log.Errorf("[Sponsorship] webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
