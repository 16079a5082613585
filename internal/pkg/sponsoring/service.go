package sponsoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

var (
	ErrUnknownType        = errors.New("unknown sponsorship type")
	ErrPriceNotConfigured = errors.New("sponsorship type has no configured price")
	ErrStartupNotFound    = errors.New("startup not found")
)

// Config maps sponsorship tiers to billing price IDs and carries the public
// base URL used for checkout redirect targets.
type Config struct {
	PriceFeatured string
	PriceCategory string
	PublicDomain  string
}

func ConfigFromEnv() Config {
	return Config{
		PriceFeatured: strings.TrimSpace(env.GetEnv("SPONSOR_PRICE_FEATURED", "")),
		PriceCategory: strings.TrimSpace(env.GetEnv("SPONSOR_PRICE_CATEGORY", "")),
		PublicDomain:  strings.TrimRight(strings.TrimSpace(env.GetEnv("PUBLIC_DOMAIN", "")), "/"),
	}
}

// PriceFor resolves a sponsorship type to its configured price ID.
func (c Config) PriceFor(sponsorshipType string) (string, error) {
	switch sponsorshipType {
	case models.SponsorshipTypeFeatured:
		if c.PriceFeatured == "" {
			return "", fmt.Errorf("%w: %s", ErrPriceNotConfigured, sponsorshipType)
		}
		return c.PriceFeatured, nil
	case models.SponsorshipTypeCategory:
		if c.PriceCategory == "" {
			return "", fmt.Errorf("%w: %s", ErrPriceNotConfigured, sponsorshipType)
		}
		return c.PriceCategory, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownType, sponsorshipType)
	}
}

// CheckoutResult is returned to the caller initiating a sponsorship purchase.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// Service drives the sponsorship lifecycle: checkout creation and the
// webhook-fed pending -> active -> cancelled transitions.
type Service struct {
	cfg          Config
	startups     repository.StartupRepository
	sponsorships repository.SponsorshipRepository
	connections  repository.ConnectionRepository
	checkout     CheckoutClient
}

// NewService creates a sponsoring service from injected repositories and a
// checkout client.
func NewService(cfg Config, startups repository.StartupRepository, sponsorships repository.SponsorshipRepository, connections repository.ConnectionRepository, checkout CheckoutClient) *Service {
	return &Service{
		cfg:          cfg,
		startups:     startups,
		sponsorships: sponsorships,
		connections:  connections,
		checkout:     checkout,
	}
}

// CreateCheckout verifies the startup and tier, creates a hosted subscription
// checkout and records a pending sponsorship. A failed pending insert is
// logged but does not fail the call: the webhook fallback lookup compensates.
func (s *Service) CreateCheckout(ctx context.Context, startupSlug, sponsorshipType string) (*CheckoutResult, error) {
	sponsorshipType = strings.ToLower(strings.TrimSpace(sponsorshipType))
	if !models.ValidSponsorshipType(sponsorshipType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, sponsorshipType)
	}

	startup, err := s.startups.GetBySlug(strings.TrimSpace(startupSlug))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStartupNotFound, startupSlug)
		}
		return nil, err
	}

	priceID, err := s.cfg.PriceFor(sponsorshipType)
	if err != nil {
		return nil, err
	}

	detailURL := s.cfg.PublicDomain + "/startup/" + startup.Slug
	session, err := s.checkout.CreateSubscriptionSession(ctx, CheckoutParams{
		PriceID:    priceID,
		SuccessURL: detailURL + "?sponsored=1",
		CancelURL:  detailURL + "?sponsor_cancelled=1",
		Metadata: map[string]string{
			"startup_id":       strconv.FormatUint(uint64(startup.ID), 10),
			"startup_slug":     startup.Slug,
			"startup_name":     startup.Name,
			"sponsorship_type": sponsorshipType,
		},
	})
	if err != nil {
		return nil, err
	}

	pending := &models.Sponsorship{
		StartupID:         startup.ID,
		Type:              sponsorshipType,
		Status:            models.SponsorshipStatusPending,
		StripePriceID:     priceID,
		CheckoutSessionID: session.ID,
	}
	if sponsorshipType == models.SponsorshipTypeCategory {
		pending.Category = startup.Category
	}
	if err := s.sponsorships.Create(pending); err != nil {
		log.Warnf("[Sponsoring] failed to record pending sponsorship for %s (session %s): %v", startup.Slug, session.ID, err)
	}

	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

// Deactivate cancels a sponsorship by ID (operator action).
func (s *Service) Deactivate(ctx context.Context, sponsorshipID uint) (*models.Sponsorship, error) {
	_ = ctx
	sp, err := s.sponsorships.GetByID(sponsorshipID)
	if err != nil {
		return nil, err
	}

	if sp.Status == models.SponsorshipStatusCancelled && sp.EndDate != nil {
		return sp, nil
	}
	sp.Status = models.SponsorshipStatusCancelled
	if sp.EndDate == nil {
		now := time.Now().UTC()
		sp.EndDate = &now
	}
	if err := s.sponsorships.Update(sp); err != nil {
		return nil, err
	}
	return sp, nil
}
