package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
)

const dateLayout = "2006-01-02"

// GetBars returns stored bars for the symbol within [from, to], most recent
// first. An empty slice means no data.
func (s *Store) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.HistoryBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM history_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date DESC`,
		normalizeSymbol(symbol), from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.HistoryBar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// GetLatestBars returns the most recent stored bar per symbol.
func (s *Store) GetLatestBars(ctx context.Context, symbols []string) (map[string]models.HistoryBar, error) {
	result := make(map[string]models.HistoryBar, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(symbols))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(symbols))
	for i, sym := range symbols {
		args[i] = normalizeSymbol(sym)
	}

	query := fmt.Sprintf(`
		SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM history_bars
		WHERE symbol IN (%s)
		GROUP BY symbol
		HAVING date = MAX(date)`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest bars: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, date string
		var bar models.HistoryBar
		if err := rows.Scan(&symbol, &date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan latest bar: %w", err)
		}
		bar.Date, _ = time.Parse(dateLayout, date)
		result[symbol] = bar
	}
	return result, rows.Err()
}

// UpsertBars inserts or replaces bars for a symbol in one transaction and
// returns the number of rows written.
func (s *Store) UpsertBars(ctx context.Context, symbol string, bars []models.HistoryBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO history_bars
			(symbol, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	sym := normalizeSymbol(symbol)
	count := 0
	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx, sym, bar.Date.Format(dateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume); err != nil {
			return 0, fmt.Errorf("failed to upsert bar %s/%s: %w", sym, bar.Date.Format(dateLayout), err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return count, nil
}

// ListSymbols returns the stored symbol universe, ordered by symbol.
func (s *Store) ListSymbols(ctx context.Context) ([]models.SymbolRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, description, exchange, type, is_active
		FROM symbols ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var records []models.SymbolRecord
	for rows.Next() {
		var r models.SymbolRecord
		var active int
		if err := rows.Scan(&r.Symbol, &r.Description, &r.Exchange, &r.Type, &active); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		r.IsActive = active != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertSymbols merges symbol records into the symbols table.
func (s *Store) UpsertSymbols(ctx context.Context, records []models.SymbolRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO symbols (symbol, description, exchange, type, is_active)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		active := 0
		if r.IsActive {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx, normalizeSymbol(r.Symbol), r.Description, r.Exchange, r.Type, active); err != nil {
			return fmt.Errorf("failed to upsert symbol %s: %w", r.Symbol, err)
		}
	}

	return tx.Commit()
}

func scanBar(rows *sql.Rows) (models.HistoryBar, error) {
	var date string
	var bar models.HistoryBar
	if err := rows.Scan(&date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume); err != nil {
		return bar, fmt.Errorf("failed to scan bar: %w", err)
	}
	bar.Date, _ = time.Parse(dateLayout, date)
	return bar, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Ensure Store implements HistoryStore
var _ interfaces.HistoryStore = (*Store)(nil)
