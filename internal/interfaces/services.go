package interfaces

import (
	"context"

	"github.com/bobmcallan/marketd/internal/models"
)

// MarketDataService is the single entry point callers use for market data.
// It hides provider plurality, caching, and background backfill.
type MarketDataService interface {
	// GetQuote returns the best available quote, or nil when every tier
	// yields nothing. Nil is "data temporarily unavailable", not an error.
	GetQuote(ctx context.Context, symbol string) *models.Quote

	// GetHistory returns daily bars for the period, or nil when no tier
	// has data. A network-served miss schedules a background backfill.
	GetHistory(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries

	// Search returns ranked symbol matches, preferring the local symbol
	// index over providers. Never nil.
	Search(ctx context.Context, query string, limit int) []models.SearchResult

	// GetTrending returns up to count trending symbols. Never nil.
	GetTrending(ctx context.Context, count int) []models.TrendingStock

	// Invalidate removes the quote entry and every history-period entry
	// for the symbol from the result cache.
	Invalidate(symbol string)

	// ProviderStatus reports each provider's priority, availability, and
	// rate budget, keyed by provider name.
	ProviderStatus() map[string]models.ProviderStatus
}

// SymbolIndex is the in-memory ranked search index over the symbol universe.
type SymbolIndex interface {
	// Load atomically replaces the whole index.
	Load(records []models.SymbolRecord)

	// AddOrUpdate upserts a single record, for low-frequency updates.
	AddOrUpdate(record models.SymbolRecord)

	// Search returns up to limit active records ranked exact, prefix,
	// contains; ties broken alphabetically by symbol.
	Search(query string, limit int) []models.SearchResult

	// Get returns the record for an exact uppercase symbol match.
	Get(symbol string) (models.SymbolRecord, bool)

	// Len returns the number of indexed records.
	Len() int
}
