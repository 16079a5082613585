package metricsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/env"
	"github.com/pulseboard/pulseboard/internal/pkg/leaderboard"
	"github.com/pulseboard/pulseboard/internal/pkg/providers"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	defaultWorkers     = 4
	defaultSyncTimeout = 60 * time.Second
)

// Result is the per-connection outcome of a sync run.
type Result struct {
	StartupID uint                       `json:"startupId"`
	Provider  string                     `json:"provider"`
	Status    string                     `json:"status"`
	Error     string                     `json:"error,omitempty"`
	Metrics   *providers.StandardMetrics `json:"metrics,omitempty"`
}

// Summary aggregates a batch of results for the sync trigger response.
type Summary struct {
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

func Summarize(results []Result) Summary {
	s := Summary{Results: results}
	for _, r := range results {
		if r.Status == StatusSuccess {
			s.Synced++
		} else {
			s.Failed++
		}
	}
	return s
}

// PayloadArchiver stores raw fetched metrics out of band. Archive failures
// never fail a sync.
type PayloadArchiver interface {
	ArchiveMetrics(ctx context.Context, startupID uint, provider string, metrics *providers.StandardMetrics) error
}

// Engine fetches metrics through provider adapters and writes the
// current-snapshot plus daily-history rows. One engine serves both the
// periodic batch run and single-connection manual syncs.
type Engine struct {
	registry    *providers.Registry
	connections repository.ConnectionRepository
	metrics     repository.MetricsRepository
	archiver    PayloadArchiver

	workers     int
	syncTimeout time.Duration
}

// NewEngine creates a sync engine. archiver may be nil when payload
// archiving is disabled.
func NewEngine(registry *providers.Registry, connections repository.ConnectionRepository, metrics repository.MetricsRepository, archiver PayloadArchiver) *Engine {
	workers, err := strconv.Atoi(env.GetEnv("SYNC_WORKERS", strconv.Itoa(defaultWorkers)))
	if err != nil || workers <= 0 {
		workers = defaultWorkers
	}

	return &Engine{
		registry:    registry,
		connections: connections,
		metrics:     metrics,
		archiver:    archiver,
		workers:     workers,
		syncTimeout: defaultSyncTimeout,
	}
}

// SyncOne runs the full per-connection sync: resolve adapter, fetch, write
// snapshot, append today's history entry, stamp the connection. Failures are
// reported in the Result and recorded on the connection row; they are never
// returned as an error so batch callers keep going.
func (e *Engine) SyncOne(ctx context.Context, conn *models.ProviderConnection) Result {
	result := Result{StartupID: conn.StartupID, Provider: conn.Provider}

	adapter, err := e.registry.Get(conn.Provider)
	if err != nil {
		return e.fail(&result, conn, err)
	}

	token, err := e.connections.GetTokenByConnectionID(conn.ID)
	if err != nil {
		return e.fail(&result, conn, fmt.Errorf("loading token: %w", err))
	}

	fetchCtx := ctx
	if e.syncTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.syncTimeout)
		defer cancel()
	}

	metrics, err := adapter.FetchMetrics(fetchCtx, providers.ConnectionConfig{
		ConnectionID: conn.ID,
		AccountID:    conn.ProviderAccountID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	if err != nil {
		return e.fail(&result, conn, err)
	}

	now := time.Now().UTC()
	snap := &models.MetricsSnapshot{
		StartupID:            conn.StartupID,
		Currency:             metrics.Currency,
		MRR:                  metrics.MRR,
		TotalRevenue:         metrics.TotalRevenue,
		Last30dRevenue:       metrics.Last30dRevenue,
		Provider:             conn.Provider,
		ProviderLastSyncedAt: &now,
	}
	if err := e.metrics.UpsertSnapshot(snap); err != nil {
		return e.fail(&result, conn, fmt.Errorf("writing snapshot: %w", err))
	}

	// Best-effort from here on: the snapshot is already written, secondary
	// bookkeeping failures must not turn this sync into a failure.
	inserted, err := e.metrics.AppendHistoryIfAbsent(&models.MetricsHistoryEntry{
		StartupID:      conn.StartupID,
		SnapshotDate:   models.SnapshotDateFor(now),
		Currency:       metrics.Currency,
		MRR:            metrics.MRR,
		TotalRevenue:   metrics.TotalRevenue,
		Last30dRevenue: metrics.Last30dRevenue,
		Provider:       conn.Provider,
	})
	if err != nil {
		log.Warnf("[MetricSync] history append failed for startup %d: %v", conn.StartupID, err)
	} else if inserted {
		log.Debugf("[MetricSync] history entry appended for startup %d (%s)", conn.StartupID, models.SnapshotDateFor(now))
	}

	if e.archiver != nil {
		if err := e.archiver.ArchiveMetrics(ctx, conn.StartupID, conn.Provider, metrics); err != nil {
			log.Warnf("[MetricSync] payload archive failed for startup %d: %v", conn.StartupID, err)
		}
	}

	if err := e.connections.RecordSyncSuccess(conn.ID, now); err != nil {
		log.Warnf("[MetricSync] updating connection %d after sync failed: %v", conn.ID, err)
	}

	result.Status = StatusSuccess
	result.Metrics = metrics
	return result
}

// SyncAll processes connections with a bounded worker pool. Every element of
// the returned slice corresponds to the connection at the same index; one
// connection's failure or panic never cancels the others.
func (e *Engine) SyncAll(ctx context.Context, conns []models.ProviderConnection) []Result {
	results := make([]Result, len(conns))
	if len(conns) == 0 {
		return results
	}

	workers := e.workers
	if workers > len(conns) {
		workers = len(conns)
	}
	log.Infof("[MetricSync] syncing %d connections with %d workers", len(conns), workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.syncGuarded(ctx, conns[idx])
			}
		}()
	}
	for idx := range conns {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	leaderboard.InvalidateAggregatesCache()
	return results
}

// SyncEligible loads every syncable connection and runs the batch.
func (e *Engine) SyncEligible(ctx context.Context) ([]Result, error) {
	conns, err := e.connections.ListSyncable()
	if err != nil {
		return nil, err
	}
	return e.SyncAll(ctx, conns), nil
}

func (e *Engine) syncGuarded(ctx context.Context, conn models.ProviderConnection) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[MetricSync] panic syncing connection %d: %v", conn.ID, r)
			result = Result{
				StartupID: conn.StartupID,
				Provider:  conn.Provider,
				Status:    StatusError,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return e.SyncOne(ctx, &conn)
}

// fail records the failure on the connection row and fills the result.
// Rejected credentials flip the connection to revoked so the periodic sync
// stops retrying it; everything else is a retryable error status.
func (e *Engine) fail(result *Result, conn *models.ProviderConnection, err error) Result {
	result.Status = StatusError
	result.Error = err.Error()

	status := models.ConnectionStatusError
	if errors.Is(err, providers.ErrProviderAuth) {
		status = models.ConnectionStatusRevoked
	}
	if rerr := e.connections.RecordSyncFailure(conn.ID, status, err.Error()); rerr != nil {
		log.Errorf("[MetricSync] recording sync failure for connection %d failed: %v", conn.ID, rerr)
	}

	log.Warnf("[MetricSync] sync failed for startup %d (%s): %v", conn.StartupID, conn.Provider, err)
	return *result
}
