package symbolindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketd/internal/models"
)

func record(symbol, description string) models.SymbolRecord {
	return models.SymbolRecord{
		Symbol:      symbol,
		Description: description,
		Exchange:    "NASDAQ",
		Type:        "EQUITY",
		IsActive:    true,
	}
}

func TestSearchExactMatchFastPath(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{
		record("AAPL", "Apple Inc"),
		record("AAPB", "GraniteShares 2x Long AAPL"),
	})

	results := idx.Search("aapl", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearchRanking(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{
		record("A", "Agilent Technologies"),
		record("AA", "Alcoa Corp"),
		record("AAB", "Aabco Industries"),
	})

	results := idx.Search("AA", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "AA", results[0].Symbol, "exact match dominates prefix")
	assert.Equal(t, "AAB", results[1].Symbol)
}

func TestSearchDescriptionContains(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{
		record("AAPL", "Apple Inc"),
		record("MSFT", "Microsoft Corp"),
	})

	results := idx.Search("app", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, 3, results[0].Rank)

	assert.Empty(t, idx.Search("xyz", 10))
}

func TestSearchRankThenAlphabetical(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{
		record("GOOG", "Alphabet Class C"),
		record("GOOGL", "Alphabet Class A"),
		record("ZETA", "Zeta Global, googled analytics"),
	})

	results := idx.Search("GOO", 10)
	require.Len(t, results, 3)
	// Prefix matches alphabetically, then the contains-only match.
	assert.Equal(t, "GOOG", results[0].Symbol)
	assert.Equal(t, "GOOGL", results[1].Symbol)
	assert.Equal(t, "ZETA", results[2].Symbol)
}

func TestSearchLimit(t *testing.T) {
	idx := New()
	var records []models.SymbolRecord
	for i := 0; i < 30; i++ {
		records = append(records, record(fmt.Sprintf("AB%02d", i), "Test Corp"))
	}
	idx.Load(records)

	results := idx.Search("AB", 10)
	assert.Len(t, results, 10)
	assert.Equal(t, "AB00", results[0].Symbol)
}

func TestSearchExcludesInactive(t *testing.T) {
	delisted := record("DEAD", "Delisted Corp")
	delisted.IsActive = false

	idx := New()
	idx.Load([]models.SymbolRecord{delisted, record("LIVE", "Live Corp")})

	assert.Empty(t, idx.Search("DEAD", 10))

	results := idx.SearchAll("DEAD", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "DEAD", results[0].Symbol)
}

func TestLoadReplacesWholeIndex(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{record("OLD", "Old Corp")})
	idx.Load([]models.SymbolRecord{record("NEW", "New Corp")})

	_, ok := idx.Get("OLD")
	assert.False(t, ok)
	_, ok = idx.Get("NEW")
	assert.True(t, ok)
	assert.Equal(t, 1, idx.Len())
}

func TestAddOrUpdate(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{record("AAPL", "Apple Inc"), record("MSFT", "Microsoft Corp")})

	// Insert keeps alphabetical scan order.
	idx.AddOrUpdate(record("GOOG", "Alphabet"))
	assert.Equal(t, 3, idx.Len())
	results := idx.Search("CORP", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "MSFT", results[0].Symbol)

	// Replace in place.
	updated := record("GOOG", "Alphabet Inc Class C")
	idx.AddOrUpdate(updated)
	got, ok := idx.Get("GOOG")
	require.True(t, ok)
	assert.Equal(t, "Alphabet Inc Class C", got.Description)
	assert.Equal(t, 3, idx.Len())
}

func TestNormalizesSymbols(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{record(" aapl ", "Apple Inc")})

	got, ok := idx.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestConcurrentReadDuringReload(t *testing.T) {
	idx := New()
	idx.Load([]models.SymbolRecord{record("AAPL", "Apple Inc")})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			idx.Load([]models.SymbolRecord{
				record("AAPL", "Apple Inc"),
				record(fmt.Sprintf("GEN%d", i%10), "Generated Corp"),
			})
		}
	}()

	for i := 0; i < 1000; i++ {
		// The exact-match fast path must always see a complete generation.
		got, ok := idx.Get("AAPL")
		require.True(t, ok)
		require.Equal(t, "Apple Inc", got.Description)
	}
	close(stop)
	wg.Wait()
}
