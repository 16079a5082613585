package metricsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/providers"
)

type fakeConnectionRepo struct {
	repository.ConnectionRepository

	mu        sync.Mutex
	syncable  []models.ProviderConnection
	tokens    map[uint]*models.ProviderToken
	successes []uint
	failures  map[uint]string // connection ID -> recorded status
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{
		tokens:   make(map[uint]*models.ProviderToken),
		failures: make(map[uint]string),
	}
}

func (f *fakeConnectionRepo) ListSyncable() ([]models.ProviderConnection, error) {
	return f.syncable, nil
}

func (f *fakeConnectionRepo) GetTokenByConnectionID(connectionID uint) (*models.ProviderToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token, ok := f.tokens[connectionID]; ok {
		return token, nil
	}
	return &models.ProviderToken{ProviderConnectionID: connectionID, AccessToken: "tok_test"}, nil
}

func (f *fakeConnectionRepo) RecordSyncSuccess(connectionID uint, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, connectionID)
	return nil
}

func (f *fakeConnectionRepo) RecordSyncFailure(connectionID uint, status, syncError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[connectionID] = status
	return nil
}

type fakeMetricsRepo struct {
	repository.MetricsRepository

	mu        sync.Mutex
	snapshots map[uint]*models.MetricsSnapshot
	history   map[string]bool // "startupID/date"
}

func newFakeMetricsRepo() *fakeMetricsRepo {
	return &fakeMetricsRepo{
		snapshots: make(map[uint]*models.MetricsSnapshot),
		history:   make(map[string]bool),
	}
}

func (f *fakeMetricsRepo) UpsertSnapshot(snap *models.MetricsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *snap
	f.snapshots[snap.StartupID] = &copied
	return nil
}

func (f *fakeMetricsRepo) AppendHistoryIfAbsent(entry *models.MetricsHistoryEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%s", entry.StartupID, entry.SnapshotDate)
	if f.history[key] {
		return false, nil
	}
	f.history[key] = true
	return true, nil
}

func (f *fakeMetricsRepo) historyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

// fakeAdapter returns canned metrics, a canned error, or panics, keyed by
// account ID.
type fakeAdapter struct {
	name    string
	metrics map[string]*providers.StandardMetrics
	errs    map[string]error
	panics  map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchMetrics(ctx context.Context, cfg providers.ConnectionConfig) (*providers.StandardMetrics, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cfg.AccountID)
	f.mu.Unlock()

	if f.panics[cfg.AccountID] {
		panic("adapter exploded")
	}
	if err, ok := f.errs[cfg.AccountID]; ok {
		return nil, err
	}
	if m, ok := f.metrics[cfg.AccountID]; ok {
		return m, nil
	}
	return &providers.StandardMetrics{Currency: "USD", MRR: 100}, nil
}

func testConnection(id, startupID uint, provider, accountID string) models.ProviderConnection {
	return models.ProviderConnection{
		ID:                id,
		StartupID:         startupID,
		Provider:          provider,
		ProviderAccountID: accountID,
		Status:            models.ConnectionStatusConnected,
	}
}

func newTestEngine(adapter providers.Adapter, conns *fakeConnectionRepo, metrics *fakeMetricsRepo) *Engine {
	registry := providers.NewRegistry()
	if adapter != nil {
		registry.Register(adapter)
	}
	return NewEngine(registry, conns, metrics, nil)
}

func TestSyncOneWritesSnapshotAndHistory(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ProviderStripe,
		metrics: map[string]*providers.StandardMetrics{
			"acct_1": {Currency: "USD", MRR: 1234.56, TotalRevenue: 99000, Last30dRevenue: 4200},
		},
	}
	conns := newFakeConnectionRepo()
	metrics := newFakeMetricsRepo()
	engine := newTestEngine(adapter, conns, metrics)

	conn := testConnection(1, 7, models.ProviderStripe, "acct_1")
	result := engine.SyncOne(context.Background(), &conn)

	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
	snap := metrics.snapshots[7]
	if snap == nil {
		t.Fatal("expected a snapshot for startup 7")
	}
	if snap.MRR != 1234.56 || snap.TotalRevenue != 99000 || snap.Last30dRevenue != 4200 {
		t.Errorf("snapshot values not copied from fetch: %+v", snap)
	}
	if snap.Provider != models.ProviderStripe {
		t.Errorf("expected provider stripe on snapshot, got %q", snap.Provider)
	}
	if snap.ProviderLastSyncedAt == nil {
		t.Error("expected ProviderLastSyncedAt to be stamped")
	}
	if metrics.historyCount() != 1 {
		t.Errorf("expected one history entry, got %d", metrics.historyCount())
	}
	if len(conns.successes) != 1 || conns.successes[0] != 1 {
		t.Errorf("expected RecordSyncSuccess for connection 1, got %v", conns.successes)
	}
}

func TestSyncOneOverwritesSnapshotButKeepsOneHistoryRowPerDay(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ProviderStripe,
		metrics: map[string]*providers.StandardMetrics{
			"acct_1": {Currency: "USD", MRR: 100},
		},
	}
	conns := newFakeConnectionRepo()
	metrics := newFakeMetricsRepo()
	engine := newTestEngine(adapter, conns, metrics)

	conn := testConnection(1, 7, models.ProviderStripe, "acct_1")
	engine.SyncOne(context.Background(), &conn)

	adapter.metrics["acct_1"] = &providers.StandardMetrics{Currency: "USD", MRR: 250}
	engine.SyncOne(context.Background(), &conn)

	if got := metrics.snapshots[7].MRR; got != 250 {
		t.Errorf("expected snapshot overwritten to 250, got %f", got)
	}
	if metrics.historyCount() != 1 {
		t.Errorf("expected a single history row for the day, got %d", metrics.historyCount())
	}
}

func TestSyncOneAuthFailureRevokesConnection(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ProviderStripe,
		errs: map[string]error{
			"acct_bad": fmt.Errorf("token rejected: %w", providers.ErrProviderAuth),
		},
	}
	conns := newFakeConnectionRepo()
	metrics := newFakeMetricsRepo()
	engine := newTestEngine(adapter, conns, metrics)

	conn := testConnection(3, 9, models.ProviderStripe, "acct_bad")
	result := engine.SyncOne(context.Background(), &conn)

	if result.Status != StatusError || result.Error == "" {
		t.Fatalf("expected error result, got %+v", result)
	}
	if got := conns.failures[3]; got != models.ConnectionStatusRevoked {
		t.Errorf("expected connection marked revoked, got %q", got)
	}
	if len(metrics.snapshots) != 0 {
		t.Errorf("expected no snapshot written on failure, got %d", len(metrics.snapshots))
	}
}

func TestSyncOneTransientFailureKeepsConnectionRetryable(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ProviderStripe,
		errs: map[string]error{
			"acct_down": errors.New("upstream 500"),
		},
	}
	conns := newFakeConnectionRepo()
	engine := newTestEngine(adapter, conns, newFakeMetricsRepo())

	conn := testConnection(4, 11, models.ProviderStripe, "acct_down")
	result := engine.SyncOne(context.Background(), &conn)

	if result.Status != StatusError {
		t.Fatalf("expected error result, got %+v", result)
	}
	if got := conns.failures[4]; got != models.ConnectionStatusError {
		t.Errorf("expected error status recorded, got %q", got)
	}
}

func TestSyncOneUnregisteredProviderFails(t *testing.T) {
	conns := newFakeConnectionRepo()
	engine := newTestEngine(nil, conns, newFakeMetricsRepo())

	conn := testConnection(5, 12, "paddle", "acct_x")
	result := engine.SyncOne(context.Background(), &conn)

	if result.Status != StatusError {
		t.Fatalf("expected error for unregistered provider, got %+v", result)
	}
	if got := conns.failures[5]; got != models.ConnectionStatusError {
		t.Errorf("expected error status recorded, got %q", got)
	}
}

func TestSyncAllOneFailureDoesNotStopTheBatch(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ProviderStripe,
		metrics: map[string]*providers.StandardMetrics{
			"acct_a": {Currency: "USD", MRR: 10},
			"acct_c": {Currency: "USD", MRR: 30},
		},
		errs: map[string]error{
			"acct_b": errors.New("boom"),
		},
	}
	conns := newFakeConnectionRepo()
	metrics := newFakeMetricsRepo()
	engine := newTestEngine(adapter, conns, metrics)

	batch := []models.ProviderConnection{
		testConnection(1, 1, models.ProviderStripe, "acct_a"),
		testConnection(2, 2, models.ProviderStripe, "acct_b"),
		testConnection(3, 3, models.ProviderStripe, "acct_c"),
	}
	results := engine.SyncAll(context.Background(), batch)

	if len(results) != len(batch) {
		t.Fatalf("expected %d results, got %d", len(batch), len(results))
	}
	summary := Summarize(results)
	if summary.Synced != 2 || summary.Failed != 1 {
		t.Fatalf("expected 2 synced / 1 failed, got %+v", summary)
	}
	// Results line up with the input order regardless of worker scheduling.
	for i, want := range []string{StatusSuccess, StatusError, StatusSuccess} {
		if results[i].Status != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].Status)
		}
	}
	if len(metrics.snapshots) != 2 {
		t.Errorf("expected snapshots for the two successful startups, got %d", len(metrics.snapshots))
	}
}

func TestSyncAllRecoversFromAdapterPanic(t *testing.T) {
	adapter := &fakeAdapter{
		name:   models.ProviderStripe,
		panics: map[string]bool{"acct_kaboom": true},
		metrics: map[string]*providers.StandardMetrics{
			"acct_ok": {Currency: "USD", MRR: 77},
		},
	}
	engine := newTestEngine(adapter, newFakeConnectionRepo(), newFakeMetricsRepo())

	batch := []models.ProviderConnection{
		testConnection(1, 1, models.ProviderStripe, "acct_kaboom"),
		testConnection(2, 2, models.ProviderStripe, "acct_ok"),
	}
	results := engine.SyncAll(context.Background(), batch)

	if results[0].Status != StatusError {
		t.Fatalf("expected panic to surface as error result, got %+v", results[0])
	}
	if results[1].Status != StatusSuccess {
		t.Fatalf("expected second connection to still sync, got %+v", results[1])
	}
}

func TestSyncAllEmpty(t *testing.T) {
	engine := newTestEngine(nil, newFakeConnectionRepo(), newFakeMetricsRepo())
	results := engine.SyncAll(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSyncEligibleUsesSyncableConnections(t *testing.T) {
	adapter := &fakeAdapter{name: models.ProviderStripe}
	conns := newFakeConnectionRepo()
	conns.syncable = []models.ProviderConnection{
		testConnection(1, 1, models.ProviderStripe, "acct_a"),
		testConnection(2, 2, models.ProviderStripe, "acct_b"),
	}
	engine := newTestEngine(adapter, conns, newFakeMetricsRepo())

	results, err := engine.SyncEligible(context.Background())
	if err != nil {
		t.Fatalf("SyncEligible failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if len(adapter.calls) != 2 {
		t.Errorf("expected the adapter to be called for both connections, got %v", adapter.calls)
	}
}

type recordingArchiver struct {
	mu    sync.Mutex
	calls []uint
}

func (a *recordingArchiver) ArchiveMetrics(ctx context.Context, startupID uint, provider string, metrics *providers.StandardMetrics) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, startupID)
	return nil
}

func TestSyncOneArchivesPayloadWhenConfigured(t *testing.T) {
	adapter := &fakeAdapter{name: models.ProviderStripe}
	registry := providers.NewRegistry()
	registry.Register(adapter)

	archiver := &recordingArchiver{}
	engine := NewEngine(registry, newFakeConnectionRepo(), newFakeMetricsRepo(), archiver)

	conn := testConnection(1, 42, models.ProviderStripe, "acct_1")
	if result := engine.SyncOne(context.Background(), &conn); result.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(archiver.calls) != 1 || archiver.calls[0] != 42 {
		t.Errorf("expected archive call for startup 42, got %v", archiver.calls)
	}
}
