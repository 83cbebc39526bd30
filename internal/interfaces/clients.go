// Package interfaces defines service contracts for marketd
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/marketd/internal/models"
)

// StockDataProvider is the uniform capability surface over one upstream
// market-data source. A provider lacking a capability returns the "no data"
// result (nil or an empty slice) rather than an error; upstream failures are
// caught inside the provider, logged, and likewise mapped to "no data".
type StockDataProvider interface {
	// Name returns the stable provider name used in logs and status output.
	Name() string

	// Priority returns the fallback rank; lower values are tried first.
	// Fixed at construction.
	Priority() int

	// Available reports whether the provider has credentials and remaining
	// rate budget. The engine skips unavailable providers without invoking
	// any capability.
	Available() bool

	// Status returns the provider's current rate budget for diagnostics.
	Status() models.ProviderStatus

	// GetQuote returns a quote for the symbol, or nil when the provider
	// has no data for it.
	GetQuote(ctx context.Context, symbol string) *models.Quote

	// GetHistory returns daily bars covering the period, most recent
	// first, or nil when unsupported or empty.
	GetHistory(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries

	// Search returns symbol matches for the query. Never nil; empty when
	// unsupported or nothing matched. Callers enforce the minimum query
	// length before invoking.
	Search(ctx context.Context, query string) []models.SearchResult

	// GetTrending returns up to count trending symbols. Never nil; empty
	// when unsupported.
	GetTrending(ctx context.Context, count int) []models.TrendingStock

	// ListSymbols returns the provider's tradable-symbol listing for an
	// exchange, used to build the symbol universe. Empty when unsupported.
	ListSymbols(ctx context.Context, exchange string) []models.SymbolRecord
}

// HistoryStore is the durable store of previously-loaded OHLCV rows.
// It is an optional collaborator: the engine runs provider-only without one.
type HistoryStore interface {
	// GetBars returns stored bars for the symbol within [from, to],
	// most recent first. An empty slice means no data.
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.HistoryBar, error)

	// GetLatestBars returns the most recent stored bar per symbol.
	GetLatestBars(ctx context.Context, symbols []string) (map[string]models.HistoryBar, error)

	// UpsertBars inserts or replaces bars for a symbol and returns the
	// number of rows written.
	UpsertBars(ctx context.Context, symbol string, bars []models.HistoryBar) (int, error)

	// ListSymbols returns the stored symbol universe.
	ListSymbols(ctx context.Context) ([]models.SymbolRecord, error)

	// UpsertSymbols bulk-replaces or merges symbol records.
	UpsertSymbols(ctx context.Context, records []models.SymbolRecord) error

	// Close releases the underlying database handle.
	Close() error
}

// BackfillService loads a long window of history for symbols into the
// durable store. The engine invokes it fire-and-forget on history misses.
type BackfillService interface {
	LoadHistory(ctx context.Context, symbols []string, from, to time.Time) (*models.LoadReport, error)
}
