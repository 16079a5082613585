package leaderboard

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/pulseboard/pulseboard/app/models"
	"github.com/pulseboard/pulseboard/app/repository"
	"github.com/pulseboard/pulseboard/internal/pkg/cache"
)

// Sort keys accepted by ListRanked. Anything else falls back to MRR.
const (
	SortByMRR          = "mrr"
	SortByLast30d      = "last30d_revenue"
	SortByTotalRevenue = "total_revenue"
)

const (
	CacheKeyTotalMRR     = "leaderboard:aggregates:total_mrr"
	CacheKeyStartupCount = "leaderboard:aggregates:startup_count"
	aggregatesCacheTTL   = 30 * time.Minute
)

// Filters narrows the ranked list. Empty sets mean "no filter on that
// dimension"; nil MRR bounds mean unbounded.
type Filters struct {
	Countries  []string
	Categories []string
	Providers  []string
	MinMRR     *float64
	MaxMRR     *float64
	SortBy     string
}

// StartupView is one ranked row: the startup, its current metrics snapshot
// (nil when it has never synced) and its sponsorship placement.
type StartupView struct {
	Rank            int                     `json:"rank"`
	Startup         models.Startup          `json:"startup"`
	Metrics         *models.MetricsSnapshot `json:"metrics,omitempty"`
	Sponsored       bool                    `json:"sponsored"`
	SponsorshipType string                  `json:"sponsorship_type,omitempty"`
}

// Aggregates are the site-wide headline numbers, unfiltered.
type Aggregates struct {
	TotalMRR     float64 `json:"totalMrr"`
	StartupCount int64   `json:"startupCount"`
}

// Service assembles startups, current metrics and active sponsorships into
// the two-tier ranked leaderboard.
type Service struct {
	startups     repository.StartupRepository
	metrics      repository.MetricsRepository
	sponsorships repository.SponsorshipRepository
}

func NewService(startups repository.StartupRepository, metrics repository.MetricsRepository, sponsorships repository.SponsorshipRepository) *Service {
	return &Service{
		startups:     startups,
		metrics:      metrics,
		sponsorships: sponsorships,
	}
}

// ListRanked returns the leaderboard rows in display order. Startups with an
// active sponsorship always rank before those without one; inside each tier
// rows sort descending by the requested metric, ties keeping their original
// order. Missing metrics count as zero.
func (s *Service) ListRanked(f Filters) ([]StartupView, error) {
	startups, err := s.startups.ListFiltered(f.Countries, f.Categories)
	if err != nil {
		return nil, err
	}
	if len(startups) == 0 {
		return []StartupView{}, nil
	}

	ids := make([]uint, len(startups))
	for i, st := range startups {
		ids[i] = st.ID
	}

	snaps, err := s.metrics.ListSnapshotsByStartupIDs(ids)
	if err != nil {
		return nil, err
	}
	snapByStartup := make(map[uint]*models.MetricsSnapshot, len(snaps))
	for i := range snaps {
		snapByStartup[snaps[i].StartupID] = &snaps[i]
	}

	active, err := s.sponsorships.ListActiveByStartupIDs(ids)
	if err != nil {
		return nil, err
	}
	// At most one active sponsorship per startup is expected; keep the first.
	sponsorshipByStartup := make(map[uint]*models.Sponsorship, len(active))
	for i := range active {
		if _, ok := sponsorshipByStartup[active[i].StartupID]; !ok {
			sponsorshipByStartup[active[i].StartupID] = &active[i]
		}
	}

	providerSet := make(map[string]struct{}, len(f.Providers))
	for _, p := range f.Providers {
		providerSet[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}

	var sponsored, unsponsored []StartupView
	for _, st := range startups {
		snap := snapByStartup[st.ID]

		if len(providerSet) > 0 {
			// A provider filter drops startups that have never synced.
			if snap == nil {
				continue
			}
			if _, ok := providerSet[strings.ToLower(snap.Provider)]; !ok {
				continue
			}
		}

		mrr := 0.0
		if snap != nil {
			mrr = snap.MRR
		}
		if f.MinMRR != nil && mrr < *f.MinMRR {
			continue
		}
		if f.MaxMRR != nil && mrr > *f.MaxMRR {
			continue
		}

		view := StartupView{
			Startup: st,
			Metrics: snap,
		}
		if sp := sponsorshipByStartup[st.ID]; sp != nil {
			view.Sponsored = true
			view.SponsorshipType = sp.Type
			sponsored = append(sponsored, view)
		} else {
			unsponsored = append(unsponsored, view)
		}
	}

	sortBy := normalizeSort(f.SortBy)
	sortViews(sponsored, sortBy)
	sortViews(unsponsored, sortBy)

	ranked := make([]StartupView, 0, len(sponsored)+len(unsponsored))
	ranked = append(ranked, sponsored...)
	ranked = append(ranked, unsponsored...)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}

// Categories returns the distinct categories currently in use, for the
// leaderboard filter controls.
func (s *Service) Categories() ([]string, error) {
	return s.startups.Categories()
}

// Aggregates returns the unfiltered totals, cache-first with a database
// fallback that refills the cache.
func (s *Service) Aggregates() (Aggregates, error) {
	if agg, ok := cachedAggregates(); ok {
		return agg, nil
	}
	return s.refreshAggregates()
}

func (s *Service) refreshAggregates() (Aggregates, error) {
	total, err := s.metrics.TotalMRR()
	if err != nil {
		return Aggregates{}, err
	}
	count, err := s.startups.Count()
	if err != nil {
		return Aggregates{}, err
	}

	agg := Aggregates{TotalMRR: total, StartupCount: count}
	if err := cache.Set(CacheKeyTotalMRR, strconv.FormatFloat(total, 'f', 2, 64), aggregatesCacheTTL); err != nil {
		log.Debugf("[Leaderboard] caching total MRR failed: %v", err)
	}
	if err := cache.Set(CacheKeyStartupCount, strconv.FormatInt(count, 10), aggregatesCacheTTL); err != nil {
		log.Debugf("[Leaderboard] caching startup count failed: %v", err)
	}
	return agg, nil
}

// InvalidateAggregatesCache drops the cached totals so the next read
// recomputes them. Called after every sync batch.
func InvalidateAggregatesCache() {
	for _, key := range []string{CacheKeyTotalMRR, CacheKeyStartupCount} {
		if err := cache.Delete(key); err != nil {
			log.Debugf("[Leaderboard] invalidating %s failed: %v", key, err)
		}
	}
}

func cachedAggregates() (Aggregates, bool) {
	totalRaw, err := cache.Get(CacheKeyTotalMRR)
	if err != nil {
		return Aggregates{}, false
	}
	countRaw, err := cache.Get(CacheKeyStartupCount)
	if err != nil {
		return Aggregates{}, false
	}

	total, err := strconv.ParseFloat(totalRaw, 64)
	if err != nil {
		return Aggregates{}, false
	}
	count, err := strconv.ParseInt(countRaw, 10, 64)
	if err != nil {
		return Aggregates{}, false
	}
	return Aggregates{TotalMRR: total, StartupCount: count}, true
}

func normalizeSort(sortBy string) string {
	switch sortBy {
	case SortByMRR, SortByLast30d, SortByTotalRevenue:
		return sortBy
	default:
		return SortByMRR
	}
}

func sortViews(views []StartupView, sortBy string) {
	sort.SliceStable(views, func(i, j int) bool {
		return sortValue(views[i].Metrics, sortBy) > sortValue(views[j].Metrics, sortBy)
	})
}

func sortValue(snap *models.MetricsSnapshot, sortBy string) float64 {
	if snap == nil {
		return 0
	}
	switch sortBy {
	case SortByLast30d:
		return snap.Last30dRevenue
	case SortByTotalRevenue:
		return snap.TotalRevenue
	default:
		return snap.MRR
	}
}
