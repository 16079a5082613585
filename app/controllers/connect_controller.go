package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/constants"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
	"github.com/pulseboard/pulseboard/internal/pkg/metricsync"
	"github.com/pulseboard/pulseboard/internal/pkg/providers"
	"github.com/pulseboard/pulseboard/internal/pkg/security"
)

const connectStateTTL = 15 * time.Minute

// ConnectController drives the provider OAuth flow that links a startup to
// its payment account: building the authorize redirect and completing the
// callback with token exchange, connection upsert and first sync.
type ConnectController struct {
	repos  *repository.Repositories
	stripe *providers.StripeConnectClient
	engine *metricsync.Engine
}

func NewConnectController(repos *repository.Repositories, stripe *providers.StripeConnectClient, engine *metricsync.Engine) *ConnectController {
	return &ConnectController{
		repos:  repos,
		stripe: stripe,
		engine: engine,
	}
}

// HandleStripeConnect starts the Stripe Connect authorization for the
// startup named by the `startup` query parameter (public ID). All flow state
// travels inside the signed `state` value; nothing is persisted here.
func (cc *ConnectController) HandleStripeConnect(c *fiber.Ctx) error {
	publicID := strings.TrimSpace(c.Query("startup"))
	if publicID == "" {
		return cc.redirectWithError(c, "missing_params", "No startup was selected for connecting.")
	}

	startup, err := cc.repos.Startup.GetByPublicID(publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cc.redirectWithError(c, "startup_not_found", "We could not find that startup.")
		}
		log.Errorf("[Connect] startup lookup failed: %v", err)
		return cc.redirectWithError(c, "connect_failed", "Connecting is currently unavailable.")
	}

	state, err := security.GenerateConnectState(startup.ID, models.ProviderStripe, connectStateTTL, connectStateSecret())
	if err != nil {
		log.Errorf("[Connect] generating state for startup %d failed: %v", startup.ID, err)
		return cc.redirectWithError(c, "connect_failed", "Connecting is currently unavailable.")
	}

	authorizeURL, err := cc.stripe.AuthorizeURLWithState(state)
	if err != nil {
		log.Errorf("[Connect] building authorize URL failed: %v", err)
		return cc.redirectWithError(c, "oauth_not_configured", "Stripe Connect is not configured correctly.")
	}

	return c.Redirect(authorizeURL, fiber.StatusSeeOther)
}

// HandleStripeCallback completes the authorization: verify state, exchange
// the code, upsert connection and token, then run the first metrics sync.
// A failed first sync never fails the callback; the periodic sync retries.
func (cc *ConnectController) HandleStripeCallback(c *fiber.Ctx) error {
	if oauthErr := strings.TrimSpace(c.Query("error")); oauthErr != "" {
		log.Warnf("[Connect] stripe oauth denied: %s (%s)", oauthErr, c.Query("error_description"))
		return cc.redirectWithError(c, "stripe_oauth_denied", "Stripe did not authorize the connection.")
	}

	code := strings.TrimSpace(c.Query("code"))
	state := strings.TrimSpace(c.Query("state"))
	if code == "" || state == "" {
		return cc.redirectWithError(c, "missing_params", "The Stripe callback was incomplete.")
	}

	claims, err := security.VerifyConnectState(state, connectStateSecret())
	if err != nil {
		log.Warnf("[Connect] state verification failed: %v", err)
		return cc.redirectWithError(c, "invalid_state", "The connect link expired or was tampered with. Please try again.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	token, err := cc.stripe.ExchangeCode(ctx, code)
	if err != nil {
		// Provider detail stays in the server log; the founder only sees
		// the indicator.
		log.Errorf("[Connect] token exchange failed for startup %d: %v", claims.StartupID, err)
		return cc.redirectWithError(c, "token_exchange_failed", "Stripe could not confirm the connection. Please try again.")
	}

	startup, err := cc.repos.Startup.GetByID(claims.StartupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cc.redirectWithError(c, "startup_not_found", "We could not find that startup.")
		}
		log.Errorf("[Connect] startup lookup failed: %v", err)
		return cc.redirectWithError(c, "connect_failed", "Connecting is currently unavailable.")
	}

	now := time.Now().UTC()
	conn := &models.ProviderConnection{
		StartupID:         startup.ID,
		Provider:          models.ProviderStripe,
		ProviderAccountID: token.StripeUserID,
		Status:            models.ConnectionStatusConnected,
		ConnectedAt:       &now,
	}
	if err := cc.repos.Connection.ConnectWithToken(conn, &models.ProviderToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
	}); err != nil {
		log.Errorf("[Connect] storing connection for startup %d failed: %v", startup.ID, err)
		return cc.redirectWithError(c, "connect_failed", "The connection could not be saved. Please try again.")
	}

	// First sync right away so the startup shows numbers without waiting for
	// the next scheduled run.
	if result := cc.engine.SyncOne(context.Background(), conn); result.Status != metricsync.StatusSuccess {
		log.Warnf("[Connect] initial sync for startup %d failed: %s", startup.ID, result.Error)
	}

	fm := fiber.Map{"type": "success", "message": "Stripe account connected."}
	return flash.WithSuccess(c, fm).Redirect(constants.StartupDetailRoute+"/"+startup.Slug+"?connected=1", fiber.StatusSeeOther)
}

func (cc *ConnectController) redirectWithError(c *fiber.Ctx, indicator, message string) error {
	fm := fiber.Map{"type": "error", "message": message}
	return flash.WithError(c, fm).Redirect(constants.SubmitRoute+"?error="+indicator, fiber.StatusSeeOther)
}

func connectStateSecret() string {
	return env.GetEnv("CONNECT_STATE_SECRET", "")
}
