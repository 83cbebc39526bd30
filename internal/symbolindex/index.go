// Package symbolindex keeps the tradable-symbol universe resident in memory
// for sub-millisecond ranked search, avoiding a datastore round trip on
// every keystroke-driven query.
package symbolindex

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
)

// snapshot is one immutable generation of the index. Readers load it with a
// single atomic pointer read, so the exact-match fast path never takes a lock.
type snapshot struct {
	bySymbol map[string]models.SymbolRecord
	ordered  []models.SymbolRecord // sorted ascending by symbol
}

// Index implements interfaces.SymbolIndex.
type Index struct {
	current atomic.Pointer[snapshot]

	// writeMu serializes Load and AddOrUpdate; readers never take it.
	writeMu sync.Mutex
}

// New creates an empty index.
func New() *Index {
	idx := &Index{}
	idx.current.Store(&snapshot{bySymbol: map[string]models.SymbolRecord{}})
	return idx
}

// Load atomically replaces the whole index. No reader ever observes a
// partially-populated generation.
func (idx *Index) Load(records []models.SymbolRecord) {
	next := &snapshot{
		bySymbol: make(map[string]models.SymbolRecord, len(records)),
		ordered:  make([]models.SymbolRecord, 0, len(records)),
	}
	for _, r := range records {
		r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
		if r.Symbol == "" {
			continue
		}
		if _, dup := next.bySymbol[r.Symbol]; dup {
			continue
		}
		next.bySymbol[r.Symbol] = r
		next.ordered = append(next.ordered, r)
	}
	sort.Slice(next.ordered, func(i, j int) bool {
		return next.ordered[i].Symbol < next.ordered[j].Symbol
	})

	idx.writeMu.Lock()
	idx.current.Store(next)
	idx.writeMu.Unlock()
}

// AddOrUpdate upserts a single record. Intended for low-frequency updates
// after a single-symbol datastore write, not bulk loads.
func (idx *Index) AddOrUpdate(record models.SymbolRecord) {
	record.Symbol = strings.ToUpper(strings.TrimSpace(record.Symbol))
	if record.Symbol == "" {
		return
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	prev := idx.current.Load()
	next := &snapshot{
		bySymbol: make(map[string]models.SymbolRecord, len(prev.bySymbol)+1),
		ordered:  make([]models.SymbolRecord, len(prev.ordered)),
	}
	for k, v := range prev.bySymbol {
		next.bySymbol[k] = v
	}
	copy(next.ordered, prev.ordered)

	if _, exists := next.bySymbol[record.Symbol]; exists {
		next.bySymbol[record.Symbol] = record
		for i := range next.ordered {
			if next.ordered[i].Symbol == record.Symbol {
				next.ordered[i] = record
				break
			}
		}
	} else {
		next.bySymbol[record.Symbol] = record
		pos := sort.Search(len(next.ordered), func(i int) bool {
			return next.ordered[i].Symbol >= record.Symbol
		})
		next.ordered = append(next.ordered, models.SymbolRecord{})
		copy(next.ordered[pos+1:], next.ordered[pos:])
		next.ordered[pos] = record
	}

	idx.current.Store(next)
}

// Get returns the record for an exact uppercase symbol match.
func (idx *Index) Get(symbol string) (models.SymbolRecord, bool) {
	snap := idx.current.Load()
	r, ok := snap.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return r, ok
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.current.Load().ordered)
}

// Search returns up to limit active records matching the query, ranked
// exact (1), prefix (2), contains (3); ties broken alphabetically. The
// ranking is a deterministic total order so repeated identical queries
// produce identical autocomplete results.
func (idx *Index) Search(query string, limit int) []models.SearchResult {
	return idx.search(query, limit, false)
}

// SearchAll is Search without the active-only filter.
func (idx *Index) SearchAll(query string, limit int) []models.SearchResult {
	return idx.search(query, limit, true)
}

func (idx *Index) search(query string, limit int, includeInactive bool) []models.SearchResult {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []models.SearchResult{}
	}

	snap := idx.current.Load()

	// Fast path: exact symbol match needs no scan.
	if r, ok := snap.bySymbol[q]; ok && (r.IsActive || includeInactive) {
		return []models.SearchResult{toResult(r, 1)}
	}

	results := make([]models.SearchResult, 0, limit)
	for _, r := range snap.ordered {
		if !r.IsActive && !includeInactive {
			continue
		}
		var rank int
		switch {
		case r.Symbol == q:
			rank = 1
		case strings.HasPrefix(r.Symbol, q):
			rank = 2
		case strings.Contains(strings.ToUpper(r.Description), q):
			rank = 3
		default:
			continue
		}
		results = append(results, toResult(r, rank))
	}

	// ordered is already alphabetical, so a stable sort by rank yields
	// rank-then-symbol order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func toResult(r models.SymbolRecord, rank int) models.SearchResult {
	return models.SearchResult{
		Symbol:      r.Symbol,
		Description: r.Description,
		Exchange:    r.Exchange,
		Type:        r.Type,
		Rank:        rank,
	}
}

// Ensure Index implements SymbolIndex
var _ interfaces.SymbolIndex = (*Index)(nil)
