package sponsoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
)

type fakeStartupRepo struct {
	repository.StartupRepository
	bySlug map[string]*models.Startup
}

func (f *fakeStartupRepo) GetBySlug(slug string) (*models.Startup, error) {
	s, ok := f.bySlug[slug]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

type fakeSponsorshipRepo struct {
	repository.SponsorshipRepository
	nextID    uint
	rows      map[uint]models.Sponsorship
	createErr error
}

func newFakeSponsorshipRepo() *fakeSponsorshipRepo {
	return &fakeSponsorshipRepo{rows: make(map[uint]models.Sponsorship)}
}

func (f *fakeSponsorshipRepo) Create(s *models.Sponsorship) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	s.ID = f.nextID
	s.CreatedAt = time.Now()
	f.rows[s.ID] = *s
	return nil
}

func (f *fakeSponsorshipRepo) GetByID(id uint) (*models.Sponsorship, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := row
	return &out, nil
}

func (f *fakeSponsorshipRepo) GetByCheckoutSessionID(sessionID string) (*models.Sponsorship, error) {
	for id := range f.rows {
		if f.rows[id].CheckoutSessionID == sessionID {
			out := f.rows[id]
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSponsorshipRepo) GetBySubscriptionID(subscriptionID string) (*models.Sponsorship, error) {
	for id := range f.rows {
		if f.rows[id].StripeSubscriptionID == subscriptionID {
			out := f.rows[id]
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSponsorshipRepo) LatestPendingByStartupAndType(startupID uint, sponsorshipType string) (*models.Sponsorship, error) {
	var best *models.Sponsorship
	for id := range f.rows {
		row := f.rows[id]
		if row.StartupID != startupID || row.Type != sponsorshipType || row.Status != models.SponsorshipStatusPending {
			continue
		}
		if best == nil || row.CreatedAt.After(best.CreatedAt) {
			out := row
			best = &out
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (f *fakeSponsorshipRepo) Update(s *models.Sponsorship) error {
	if _, ok := f.rows[s.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.rows[s.ID] = *s
	return nil
}

type fakeConnectionRepo struct {
	repository.ConnectionRepository
	byAccount map[string]*models.ProviderConnection
	statuses  map[uint]string
}

func (f *fakeConnectionRepo) GetByProviderAccountID(provider, accountID string) (*models.ProviderConnection, error) {
	conn, ok := f.byAccount[provider+"/"+accountID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conn, nil
}

func (f *fakeConnectionRepo) UpdateStatus(connectionID uint, status string) error {
	if f.statuses == nil {
		f.statuses = make(map[uint]string)
	}
	f.statuses[connectionID] = status
	return nil
}

type fakeCheckoutClient struct {
	lastParams CheckoutParams
	session    *CheckoutSession
	err        error
}

func (f *fakeCheckoutClient) CreateSubscriptionSession(_ context.Context, params CheckoutParams) (*CheckoutSession, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func testService(sponsorships *fakeSponsorshipRepo, checkout *fakeCheckoutClient) (*Service, *fakeConnectionRepo) {
	startups := &fakeStartupRepo{bySlug: map[string]*models.Startup{
		"acme-inc": {ID: 7, Name: "Acme Inc.", Slug: "acme-inc", Category: "fintech"},
	}}
	connections := &fakeConnectionRepo{byAccount: map[string]*models.ProviderConnection{
		"stripe/acct_42": {ID: 3, StartupID: 7, Provider: models.ProviderStripe, ProviderAccountID: "acct_42", Status: models.ConnectionStatusConnected},
	}}
	cfg := Config{
		PriceFeatured: "price_featured",
		PriceCategory: "price_category",
		PublicDomain:  "https://pulseboard.example",
	}
	return NewService(cfg, startups, sponsorships, connections, checkout), connections
}

func TestCreateCheckout(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}}
	svc, _ := testService(sponsorships, checkout)

	result, err := svc.CreateCheckout(context.Background(), "acme-inc", "featured")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.URL != "https://checkout.stripe.com/cs_1" || result.SessionID != "cs_1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if checkout.lastParams.PriceID != "price_featured" {
		t.Fatalf("expected featured price, got %q", checkout.lastParams.PriceID)
	}
	meta := checkout.lastParams.Metadata
	if meta["startup_id"] != "7" || meta["startup_slug"] != "acme-inc" || meta["startup_name"] != "Acme Inc." || meta["sponsorship_type"] != "featured" {
		t.Fatalf("unexpected metadata: %v", meta)
	}

	pending, err := sponsorships.GetByCheckoutSessionID("cs_1")
	if err != nil {
		t.Fatalf("expected pending sponsorship to be recorded: %v", err)
	}
	if pending.Status != models.SponsorshipStatusPending {
		t.Fatalf("expected pending status, got %q", pending.Status)
	}
	if pending.StripePriceID != "price_featured" {
		t.Fatalf("expected price recorded, got %q", pending.StripePriceID)
	}
	if pending.Category != "" {
		t.Fatalf("featured tier must not carry a category, got %q", pending.Category)
	}
}

func TestCreateCheckoutCategoryTierCopiesCategory(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/cs_2"}}
	svc, _ := testService(sponsorships, checkout)

	if _, err := svc.CreateCheckout(context.Background(), "acme-inc", "category"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := sponsorships.GetByCheckoutSessionID("cs_2")
	if err != nil {
		t.Fatalf("expected pending sponsorship: %v", err)
	}
	if pending.Category != "fintech" {
		t.Fatalf("expected startup category to be copied, got %q", pending.Category)
	}
}

func TestCreateCheckoutInputErrors(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_3", URL: "https://x"}}
	svc, _ := testService(sponsorships, checkout)

	if _, err := svc.CreateCheckout(context.Background(), "acme-inc", "gold"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := svc.CreateCheckout(context.Background(), "nope", "featured"); !errors.Is(err, ErrStartupNotFound) {
		t.Fatalf("expected ErrStartupNotFound, got %v", err)
	}

	svc.cfg.PriceCategory = ""
	if _, err := svc.CreateCheckout(context.Background(), "acme-inc", "category"); !errors.Is(err, ErrPriceNotConfigured) {
		t.Fatalf("expected ErrPriceNotConfigured, got %v", err)
	}
}

func TestCreateCheckoutSurvivesPendingInsertFailure(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	sponsorships.createErr = errors.New("db down")
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_4", URL: "https://checkout.stripe.com/cs_4"}}
	svc, _ := testService(sponsorships, checkout)

	result, err := svc.CreateCheckout(context.Background(), "acme-inc", "featured")
	if err != nil {
		t.Fatalf("checkout must succeed despite pending insert failure, got %v", err)
	}
	if result.URL == "" {
		t.Fatalf("expected checkout URL")
	}
}

func checkoutCompletedEvent(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_%s",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "%s",
			"customer": "cus_9",
			"subscription": "sub_9",
			"metadata": {"startup_id": "7", "startup_slug": "acme-inc", "sponsorship_type": "featured"}
		}}
	}`, sessionID, sessionID))
}

func TestWebhookActivatesBySessionID(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_5", URL: "https://x"}}
	svc, _ := testService(sponsorships, checkout)

	if _, err := svc.CreateCheckout(context.Background(), "acme-inc", "featured"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.HandleWebhookEvent(context.Background(), checkoutCompletedEvent("cs_5")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sp, err := sponsorships.GetByCheckoutSessionID("cs_5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Status != models.SponsorshipStatusActive {
		t.Fatalf("expected active, got %q", sp.Status)
	}
	if sp.StripeCustomerID != "cus_9" || sp.StripeSubscriptionID != "sub_9" {
		t.Fatalf("expected billing ids stored, got %+v", sp)
	}
	if sp.StartDate == nil {
		t.Fatalf("expected start date to be set")
	}
}

func TestWebhookActivationIdempotent(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	checkout := &fakeCheckoutClient{session: &CheckoutSession{ID: "cs_6", URL: "https://x"}}
	svc, _ := testService(sponsorships, checkout)

	if _, err := svc.CreateCheckout(context.Background(), "acme-inc", "featured"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := checkoutCompletedEvent("cs_6")
	if err := svc.HandleWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := sponsorships.GetByCheckoutSessionID("cs_6")

	if err := svc.HandleWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := sponsorships.GetByCheckoutSessionID("cs_6")

	if second.Status != models.SponsorshipStatusActive {
		t.Fatalf("expected still active, got %q", second.Status)
	}
	if !second.StartDate.Equal(*first.StartDate) {
		t.Fatalf("redelivery must not advance start date: %v vs %v", first.StartDate, second.StartDate)
	}
}

func TestWebhookActivationFallbackToLatestPending(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	// Pending row exists but under a session ID that never reached us.
	if err := sponsorships.Create(&models.Sponsorship{
		StartupID:         7,
		Type:              models.SponsorshipTypeFeatured,
		Status:            models.SponsorshipStatusPending,
		CheckoutSessionID: "cs_lost",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkout := &fakeCheckoutClient{}
	svc, _ := testService(sponsorships, checkout)

	if err := svc.HandleWebhookEvent(context.Background(), checkoutCompletedEvent("cs_divergent")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sp, err := sponsorships.GetByCheckoutSessionID("cs_lost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Status != models.SponsorshipStatusActive {
		t.Fatalf("expected fallback activation, got %q", sp.Status)
	}
	if sp.StripeSubscriptionID != "sub_9" {
		t.Fatalf("expected subscription id stored, got %q", sp.StripeSubscriptionID)
	}
}

func TestWebhookActivationMissingMetadata(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	svc, _ := testService(sponsorships, &fakeCheckoutClient{})

	payload := []byte(`{
		"id": "evt_x",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_x", "customer": "cus_1", "subscription": "sub_1", "metadata": {}}}
	}`)
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("missing metadata must be log-only, got %v", err)
	}
	if len(sponsorships.rows) != 0 {
		t.Fatalf("expected no sponsorship rows to be touched")
	}
}

func TestWebhookInvoiceKeepAlive(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	end := time.Now().UTC()
	if err := sponsorships.Create(&models.Sponsorship{
		StartupID:            7,
		Type:                 models.SponsorshipTypeFeatured,
		Status:               models.SponsorshipStatusCancelled,
		StripeSubscriptionID: "sub_9",
		EndDate:              &end,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, _ := testService(sponsorships, &fakeCheckoutClient{})

	payload := []byte(`{
		"id": "evt_inv",
		"type": "invoice.paid",
		"data": {"object": {"id": "in_1", "subscription": "sub_9"}}
	}`)
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sp, _ := sponsorships.GetBySubscriptionID("sub_9")
	if sp.Status != models.SponsorshipStatusActive {
		t.Fatalf("expected keep-alive to re-activate, got %q", sp.Status)
	}
	if sp.EndDate != nil {
		t.Fatalf("expected end date cleared on re-activation")
	}
}

func TestWebhookSubscriptionDeletedCancels(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	start := time.Now().UTC().Add(-24 * time.Hour)
	if err := sponsorships.Create(&models.Sponsorship{
		StartupID:            7,
		Type:                 models.SponsorshipTypeFeatured,
		Status:               models.SponsorshipStatusActive,
		StripeSubscriptionID: "sub_9",
		StartDate:            &start,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, _ := testService(sponsorships, &fakeCheckoutClient{})

	payload := []byte(`{
		"id": "evt_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_9"}}
	}`)
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sp, _ := sponsorships.GetBySubscriptionID("sub_9")
	if sp.Status != models.SponsorshipStatusCancelled {
		t.Fatalf("expected cancelled, got %q", sp.Status)
	}
	if sp.EndDate == nil {
		t.Fatalf("expected end date set")
	}

	firstEnd := *sp.EndDate
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sp, _ = sponsorships.GetBySubscriptionID("sub_9")
	if !sp.EndDate.Equal(firstEnd) {
		t.Fatalf("redelivery must not move the end date")
	}
}

func TestWebhookDeauthorizedRevokesConnection(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	svc, connections := testService(sponsorships, &fakeCheckoutClient{})

	payload := []byte(`{
		"id": "evt_deauth",
		"type": "account.application.deauthorized",
		"account": "acct_42",
		"data": {"object": {"id": "ca_app"}}
	}`)
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connections.statuses[3] != models.ConnectionStatusRevoked {
		t.Fatalf("expected connection 3 revoked, got %q", connections.statuses[3])
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	svc, _ := testService(sponsorships, &fakeCheckoutClient{})

	payload := []byte(`{"id": "evt_y", "type": "charge.refunded", "data": {"object": {}}}`)
	if err := svc.HandleWebhookEvent(context.Background(), payload); err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	sponsorships := newFakeSponsorshipRepo()
	start := time.Now().UTC().Add(-48 * time.Hour)
	if err := sponsorships.Create(&models.Sponsorship{
		StartupID: 7,
		Type:      models.SponsorshipTypeFeatured,
		Status:    models.SponsorshipStatusActive,
		StartDate: &start,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc, _ := testService(sponsorships, &fakeCheckoutClient{})

	sp, err := svc.Deactivate(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Status != models.SponsorshipStatusCancelled || sp.EndDate == nil {
		t.Fatalf("expected cancelled with end date, got %+v", sp)
	}

	if _, err := svc.Deactivate(context.Background(), 99); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}
