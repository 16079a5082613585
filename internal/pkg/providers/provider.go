package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FallbackCurrency is reported when a connected account has no active
// subscriptions to take a currency from.
const FallbackCurrency = "USD"

// ErrProviderAuth marks fetch failures caused by the provider rejecting the
// connection's credentials. Callers treat these as revoked access rather
// than transient errors.
var ErrProviderAuth = errors.New("provider rejected credentials")

// ConnectionConfig carries everything an adapter needs to act on behalf of
// one connected account.
type ConnectionConfig struct {
	ConnectionID uint
	AccountID    string
	AccessToken  string
	RefreshToken string
}

// FetchDiagnostics describes what a fetch actually saw upstream. Attached to
// StandardMetrics for archival, never used for ranking.
type FetchDiagnostics struct {
	SubscriptionCount int       `json:"subscription_count"`
	InvoiceCount      int       `json:"invoice_count"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// StandardMetrics is the provider-agnostic result of a metrics fetch. All
// monetary figures are whole units of Currency, rounded.
type StandardMetrics struct {
	Currency       string            `json:"currency"`
	MRR            float64           `json:"mrr"`
	TotalRevenue   float64           `json:"total_revenue"`
	Last30dRevenue float64           `json:"last30d_revenue"`
	Diagnostics    *FetchDiagnostics `json:"diagnostics,omitempty"`
}

// Adapter translates one payment provider's native API into StandardMetrics.
type Adapter interface {
	Name() string
	FetchMetrics(ctx context.Context, cfg ConnectionConfig) (*StandardMetrics, error)
}

// Registry maps provider names to adapters. Register everything during
// startup; lookups after that are safe for concurrent use.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter under its own name, replacing any previous
// binding for that name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter bound to name. Unregistered names yield an error
// naming the providers that are available.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q (registered: %s)", name, strings.Join(r.ListRegistered(), ", "))
	}
	return a, nil
}

// ListRegistered returns the registered provider names, sorted.
func (r *Registry) ListRegistered() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry wires up the production adapter set: a live Stripe
// adapter and a stub for Paddle so the provider name is already known to the
// rest of the system.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewStripeAdapter())
	r.Register(NewPaddleAdapter())
	return r
}
