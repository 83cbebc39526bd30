// Package aggregator resolves market-data requests across a priority-ordered
// provider ladder with a TTL result cache, a durable history datastore tier,
// and deduplicated background backfill.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
)

const (
	minSearchQueryLen = 2

	// maxSearchResults and maxTrendingResults cap what a fetch retrieves
	// and caches; per-caller limits truncate on the read path.
	maxSearchResults   = 50
	maxTrendingResults = 50
)

// Service implements MarketDataService. Every request follows the same
// shape: result cache, then the datastore (history only), then providers in
// ascending priority order. Negative results are never cached, so a symbol
// that was temporarily unavailable is retried on the next request.
type Service struct {
	providers []interfaces.StockDataProvider // sorted ascending by priority
	history   interfaces.HistoryStore        // optional
	backfill  interfaces.BackfillService     // optional
	symbols   interfaces.SymbolIndex         // optional
	logger    *common.Logger

	cache   *resultCache
	pending *pendingBackfills
	now     func() time.Time

	// lifetime bounds detached backfill tasks; it is independent of any
	// request context and closed only on Stop.
	lifetime context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures the service
type Option func(*Service)

// WithHistoryStore sets the durable datastore tier. Absent, the engine
// runs provider-only.
func WithHistoryStore(store interfaces.HistoryStore) Option {
	return func(s *Service) {
		s.history = store
	}
}

// WithBackfill sets the backfill collaborator invoked on history misses.
func WithBackfill(backfill interfaces.BackfillService) Option {
	return func(s *Service) {
		s.backfill = backfill
	}
}

// WithSymbolIndex sets the local symbol index consulted ahead of providers
// on search.
func WithSymbolIndex(index interfaces.SymbolIndex) Option {
	return func(s *Service) {
		s.symbols = index
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.cache = newResultCache(now)
		s.pending = newPendingBackfills(now)
	}
}

// NewService creates the aggregation engine over the given providers.
// Providers are ordered by ascending priority; ties keep registration order.
func NewService(providers []interfaces.StockDataProvider, logger *common.Logger, opts ...Option) *Service {
	ordered := make([]interfaces.StockDataProvider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	lifetime, stop := context.WithCancel(context.Background())

	s := &Service{
		providers: ordered,
		logger:    logger,
		now:       time.Now,
		cache:     newResultCache(nil),
		pending:   newPendingBackfills(nil),
		lifetime:  lifetime,
		stop:      stop,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Stop cancels in-flight backfill tasks and waits for them to exit.
func (s *Service) Stop() {
	s.stop()
	s.wg.Wait()
}

// GetQuote returns the best available quote, or nil when every tier yields
// nothing.
func (s *Service) GetQuote(ctx context.Context, symbol string) *models.Quote {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil
	}

	key := cacheKey("quote", symbol)
	if cached, ok := s.cache.get(key); ok {
		return cached.(*models.Quote)
	}

	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		if quote := p.GetQuote(ctx, symbol); quote != nil {
			s.cache.set(key, quote, quoteTTL)
			return quote
		}
		s.logger.Debug().Str("symbol", symbol).Str("provider", p.Name()).Msg("No quote, trying next provider")
	}

	s.logger.Warn().Str("symbol", symbol).Msg("Quote unavailable from all providers")
	return nil
}

// GetHistory returns daily bars for the period: cache, then the datastore,
// then the provider ladder. A network-served result schedules a
// deduplicated background backfill so future requests hit the datastore.
func (s *Service) GetHistory(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil
	}

	key := cacheKey("history", symbol, string(period))
	if cached, ok := s.cache.get(key); ok {
		return cached.(*models.HistorySeries)
	}

	// Datastore tier. Rows here mean a backfill already ran, so none is
	// scheduled on this path.
	if s.history != nil {
		if series := s.historyFromStore(ctx, symbol, period); series != nil {
			s.cache.set(key, series, historyTTL)
			return series
		}
	}

	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		if series := p.GetHistory(ctx, symbol, period); series != nil && len(series.Bars) > 0 {
			s.cache.set(key, series, historyTTL)
			s.scheduleBackfill(symbol)
			return series
		}
	}

	s.logger.Warn().Str("symbol", symbol).Str("period", string(period)).Msg("History unavailable from all providers")
	return nil
}

// historyFromStore maps stored rows in the period's date range to a series.
// Datastore failure is a cache-tier miss, not a request failure.
func (s *Service) historyFromStore(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries {
	to := s.now()
	from := period.Start(to)

	bars, err := s.history.GetBars(ctx, symbol, from, to)
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("History datastore unavailable, falling back to providers")
		return nil
	}
	if len(bars) == 0 {
		return nil
	}

	return &models.HistorySeries{
		Symbol: symbol,
		Period: period,
		Bars:   bars,
		Source: "datastore",
	}
}

// Search returns ranked symbol matches. The local symbol index is
// consulted ahead of the provider ladder. Never nil.
func (s *Service) Search(ctx context.Context, query string, limit int) []models.SearchResult {
	if limit <= 0 {
		limit = 10
	}
	trimmed := normalizeSymbol(query)
	if len(trimmed) < minSearchQueryLen {
		return []models.SearchResult{}
	}

	key := cacheKey("search", trimmed)
	if cached, ok := s.cache.get(key); ok {
		results := cached.([]models.SearchResult)
		if len(results) > limit {
			results = results[:limit]
		}
		return results
	}

	// The cached value is the full fetched response; limit only shapes
	// what each caller sees.
	if s.symbols != nil {
		if results := s.symbols.Search(trimmed, maxSearchResults); len(results) > 0 {
			s.cache.set(key, results, searchTTL)
			if len(results) > limit {
				results = results[:limit]
			}
			return results
		}
	}

	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		if results := p.Search(ctx, query); len(results) > 0 {
			s.cache.set(key, results, searchTTL)
			if len(results) > limit {
				results = results[:limit]
			}
			return results
		}
	}

	return []models.SearchResult{}
}

// GetTrending returns up to count trending symbols. Never nil.
func (s *Service) GetTrending(ctx context.Context, count int) []models.TrendingStock {
	if count <= 0 {
		count = 10
	}

	key := cacheKey("trending")
	if cached, ok := s.cache.get(key); ok {
		trending := cached.([]models.TrendingStock)
		if len(trending) > count {
			trending = trending[:count]
		}
		return trending
	}

	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		if trending := p.GetTrending(ctx, maxTrendingResults); len(trending) > 0 {
			s.cache.set(key, trending, trendingTTL)
			if len(trending) > count {
				trending = trending[:count]
			}
			return trending
		}
	}

	return []models.TrendingStock{}
}

// Invalidate removes the quote entry and every history-period entry for
// the symbol from the result cache.
func (s *Service) Invalidate(symbol string) {
	symbol = normalizeSymbol(symbol)

	s.cache.remove(cacheKey("quote", symbol))
	for _, period := range models.AllPeriods {
		s.cache.remove(cacheKey("history", symbol, string(period)))
	}

	s.logger.Debug().Str("symbol", symbol).Msg("Cache invalidated")
}

// ProviderStatus reports each provider's priority, availability, and rate
// budget, keyed by provider name.
func (s *Service) ProviderStatus() map[string]models.ProviderStatus {
	status := make(map[string]models.ProviderStatus, len(s.providers))
	for _, p := range s.providers {
		status[p.Name()] = p.Status()
	}
	return status
}

// SweepExpired drops expired cache entries and stale backfill markers.
// Invoked periodically by the app scheduler.
func (s *Service) SweepExpired() {
	entries := s.cache.sweep()
	markers := s.pending.sweepExpired()
	if entries > 0 || markers > 0 {
		s.logger.Debug().Int("cache_entries", entries).Int("backfill_markers", markers).Msg("Swept expired state")
	}
}

// Ensure Service implements MarketDataService
var _ interfaces.MarketDataService = (*Service)(nil)
