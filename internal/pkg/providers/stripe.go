package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

const (
	stripePageLimit = 100
	// Average weeks per month, used to normalize weekly billing to MRR.
	weeksPerMonth = 4.33
)

// StripeAdapter fetches revenue metrics from a connected Stripe account,
// authorized by the account's own OAuth access token.
type StripeAdapter struct {
	APIBaseURL string

	HTTPClient *http.Client
}

func NewStripeAdapter() *StripeAdapter {
	return &StripeAdapter{
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (a *StripeAdapter) Name() string {
	return models.ProviderStripe
}

type stripeRecurring struct {
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count"`
}

type stripePrice struct {
	UnitAmount int64            `json:"unit_amount"`
	Currency   string           `json:"currency"`
	Recurring  *stripeRecurring `json:"recurring"`
}

type stripeSubscriptionItem struct {
	Quantity int64       `json:"quantity"`
	Price    stripePrice `json:"price"`
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Items    struct {
		Data []stripeSubscriptionItem `json:"data"`
	} `json:"items"`
}

type stripeInvoice struct {
	ID         string `json:"id"`
	AmountPaid int64  `json:"amount_paid"`
	Created    int64  `json:"created"`
}

// FetchMetrics lists the account's active subscriptions and paid invoices,
// paginating both until exhausted, and normalizes them into StandardMetrics.
// Any upstream failure propagates as-is; no partial metrics are synthesized.
func (a *StripeAdapter) FetchMetrics(ctx context.Context, cfg ConnectionConfig) (*StandardMetrics, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrProviderAuth)
	}

	subs, err := a.listActiveSubscriptions(ctx, token)
	if err != nil {
		return nil, err
	}

	currency := FallbackCurrency
	if len(subs) > 0 && strings.TrimSpace(subs[0].Currency) != "" {
		currency = strings.ToUpper(strings.TrimSpace(subs[0].Currency))
	}

	var mrrMinor float64
	for _, sub := range subs {
		for _, item := range sub.Items.Data {
			if item.Price.Recurring == nil {
				continue
			}
			mrrMinor += monthlyAmountMinor(item.Price.UnitAmount, item.Quantity, item.Price.Recurring.IntervalCount, item.Price.Recurring.Interval)
		}
	}

	invoices, err := a.listPaidInvoices(ctx, token)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-30 * 24 * time.Hour).Unix()
	var total, last30 float64
	for _, inv := range invoices {
		paid := float64(inv.AmountPaid) / 100
		total += paid
		if inv.Created >= cutoff {
			last30 += paid
		}
	}

	return &StandardMetrics{
		Currency:       currency,
		MRR:            math.Round(mrrMinor / 100),
		TotalRevenue:   math.Round(total),
		Last30dRevenue: math.Round(last30),
		Diagnostics: &FetchDiagnostics{
			SubscriptionCount: len(subs),
			InvoiceCount:      len(invoices),
			FetchedAt:         time.Now().UTC(),
		},
	}, nil
}

// monthlyAmountMinor converts one recurring line item to its monthly
// equivalent in minor currency units. Interval counts over one stretch the
// billing period, so the amount is divided by the count first.
func monthlyAmountMinor(unitAmount, quantity, intervalCount int64, interval string) float64 {
	if quantity <= 0 {
		quantity = 1
	}
	if intervalCount <= 0 {
		intervalCount = 1
	}
	amount := float64(unitAmount*quantity) / float64(intervalCount)

	switch interval {
	case "month":
		return amount
	case "year":
		return amount / 12
	case "week":
		return amount * weeksPerMonth
	case "day":
		return amount * 30
	default:
		return 0
	}
}

func (a *StripeAdapter) listActiveSubscriptions(ctx context.Context, token string) ([]stripeSubscription, error) {
	var all []stripeSubscription
	startingAfter := ""

	for {
		var page struct {
			Data    []stripeSubscription `json:"data"`
			HasMore bool                 `json:"has_more"`
		}
		params := url.Values{}
		params.Set("status", "active")
		params.Set("limit", strconv.Itoa(stripePageLimit))
		if startingAfter != "" {
			params.Set("starting_after", startingAfter)
		}
		if err := a.getJSON(ctx, token, "/v1/subscriptions", params, &page); err != nil {
			return nil, fmt.Errorf("listing subscriptions: %w", err)
		}

		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	return all, nil
}

func (a *StripeAdapter) listPaidInvoices(ctx context.Context, token string) ([]stripeInvoice, error) {
	var all []stripeInvoice
	startingAfter := ""

	for {
		var page struct {
			Data    []stripeInvoice `json:"data"`
			HasMore bool            `json:"has_more"`
		}
		params := url.Values{}
		params.Set("status", "paid")
		params.Set("limit", strconv.Itoa(stripePageLimit))
		if startingAfter != "" {
			params.Set("starting_after", startingAfter)
		}
		if err := a.getJSON(ctx, token, "/v1/invoices", params, &page); err != nil {
			return nil, fmt.Errorf("listing invoices: %w", err)
		}

		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	return all, nil
}

func (a *StripeAdapter) getJSON(ctx context.Context, token, path string, params url.Values, out interface{}) error {
	u := strings.TrimRight(a.APIBaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status=%d body=%s", ErrProviderAuth, resp.StatusCode, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}
