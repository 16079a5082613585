package sponsoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
)

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

type subscriptionObject struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// HandleWebhookEvent dispatches one verified billing webhook payload. Events
// may be redelivered or arrive out of order, so every handler is a
// lookup-then-conditional-update that is safe to run twice. Unknown event
// types are acknowledged and ignored.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte) error {
	_ = ctx

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("parsing webhook event: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var obj checkoutSessionObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			return fmt.Errorf("parsing checkout session object: %w", err)
		}
		return s.activateFromCheckout(obj)
	case "invoice.paid", "invoice.payment_succeeded":
		var obj invoiceObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			return fmt.Errorf("parsing invoice object: %w", err)
		}
		return s.keepAliveFromInvoice(obj)
	case "customer.subscription.deleted":
		var obj subscriptionObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			return fmt.Errorf("parsing subscription object: %w", err)
		}
		return s.cancelFromSubscription(obj)
	case "account.application.deauthorized":
		return s.revokeConnection(event.Account)
	default:
		log.Infof("[Sponsoring] ignoring webhook event type %s", event.Type)
		return nil
	}
}

// activateFromCheckout flips the matching sponsorship to active. Lookup is by
// checkout session ID first; when the pending insert was lost, the most
// recent pending row for the same (startup, type) is activated instead.
func (s *Service) activateFromCheckout(obj checkoutSessionObject) error {
	startupID := metaUint(obj.Metadata, "startup_id")
	sponsorshipType := strings.TrimSpace(obj.Metadata["sponsorship_type"])
	customerID := strings.TrimSpace(obj.Customer)
	subscriptionID := strings.TrimSpace(obj.Subscription)
	if startupID == 0 || sponsorshipType == "" || customerID == "" || subscriptionID == "" {
		log.Warnf("[Sponsoring] checkout.session.completed %s missing metadata, skipping", obj.ID)
		return nil
	}

	sp, err := s.sponsorships.GetByCheckoutSessionID(obj.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		sp, err = s.sponsorships.LatestPendingByStartupAndType(startupID, sponsorshipType)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("[Sponsoring] no sponsorship to activate for session %s (startup %d, type %s)", obj.ID, startupID, sponsorshipType)
				return nil
			}
			return err
		}
	}

	sp.StripeCustomerID = customerID
	sp.StripeSubscriptionID = subscriptionID
	if sp.CheckoutSessionID == "" {
		sp.CheckoutSessionID = obj.ID
	}
	sp.Status = models.SponsorshipStatusActive
	if sp.StartDate == nil {
		now := time.Now().UTC()
		sp.StartDate = &now
	}
	return s.sponsorships.Update(sp)
}

// keepAliveFromInvoice re-activates a sponsorship that lapsed between
// recurring charges.
func (s *Service) keepAliveFromInvoice(obj invoiceObject) error {
	subscriptionID := strings.TrimSpace(obj.Subscription)
	if subscriptionID == "" {
		log.Warnf("[Sponsoring] invoice %s without subscription, skipping", obj.ID)
		return nil
	}

	sp, err := s.sponsorships.GetBySubscriptionID(subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Sponsoring] invoice %s references unknown subscription %s", obj.ID, subscriptionID)
			return nil
		}
		return err
	}

	if sp.Status == models.SponsorshipStatusActive {
		return nil
	}
	sp.Status = models.SponsorshipStatusActive
	sp.EndDate = nil
	if sp.StartDate == nil {
		now := time.Now().UTC()
		sp.StartDate = &now
	}
	return s.sponsorships.Update(sp)
}

func (s *Service) cancelFromSubscription(obj subscriptionObject) error {
	subscriptionID := strings.TrimSpace(obj.ID)
	if subscriptionID == "" {
		log.Warnf("[Sponsoring] subscription.deleted without id, skipping")
		return nil
	}

	sp, err := s.sponsorships.GetBySubscriptionID(subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Sponsoring] subscription.deleted for unknown subscription %s", subscriptionID)
			return nil
		}
		return err
	}

	if sp.Status == models.SponsorshipStatusCancelled && sp.EndDate != nil {
		return nil
	}
	sp.Status = models.SponsorshipStatusCancelled
	if sp.EndDate == nil {
		now := time.Now().UTC()
		sp.EndDate = &now
	}
	return s.sponsorships.Update(sp)
}

// revokeConnection marks the provider connection revoked after the account
// owner disconnected our platform on the provider side.
func (s *Service) revokeConnection(accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		log.Warnf("[Sponsoring] deauthorized event without account id, skipping")
		return nil
	}

	conn, err := s.connections.GetByProviderAccountID(models.ProviderStripe, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Sponsoring] deauthorized event for unknown account %s", accountID)
			return nil
		}
		return err
	}

	if conn.Status == models.ConnectionStatusRevoked {
		return nil
	}
	log.Infof("[Sponsoring] marking connection %d (account %s) revoked", conn.ID, accountID)
	return s.connections.UpdateStatus(conn.ID, models.ConnectionStatusRevoked)
}

func metaUint(metadata map[string]string, key string) uint {
	v, err := strconv.ParseUint(strings.TrimSpace(metadata[key]), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
