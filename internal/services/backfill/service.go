// Package backfill loads long daily-bar histories from the provider ladder
// into the durable datastore.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
)

// Service fetches daily bars from providers and persists them. Providers
// are tried in the order given; the first non-empty series wins.
type Service struct {
	providers []interfaces.StockDataProvider
	store     interfaces.HistoryStore
	logger    *common.Logger
}

// NewService creates a backfill service over the given providers and store.
// Providers should already be sorted ascending by priority.
func NewService(providers []interfaces.StockDataProvider, store interfaces.HistoryStore, logger *common.Logger) *Service {
	return &Service{
		providers: providers,
		store:     store,
		logger:    logger,
	}
}

// LoadHistory fetches bars covering [from, to] for each symbol and upserts
// them. Per-symbol failures are collected in the report; the method only
// errors when it cannot proceed at all.
func (s *Service) LoadHistory(ctx context.Context, symbols []string, from, to time.Time) (*models.LoadReport, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no history store configured")
	}

	report := &models.LoadReport{}
	period := periodCovering(from, to)

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		series := s.fetch(ctx, symbol, period)
		if series == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: no provider returned history", symbol))
			continue
		}

		bars := trimToRange(series.Bars, from, to)
		if len(bars) == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: no bars in requested range", symbol))
			continue
		}

		inserted, err := s.store.UpsertBars(ctx, symbol, bars)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", symbol, err))
			continue
		}
		report.RecordsInserted += inserted

		s.logger.Info().
			Str("symbol", symbol).
			Str("source", series.Source).
			Int("bars", inserted).
			Msg("History loaded")
	}

	return report, nil
}

// fetch walks the provider ladder for one symbol. Providers without
// history support return nil and are skipped.
func (s *Service) fetch(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries {
	for _, p := range s.providers {
		if !p.Available() {
			continue
		}
		if series := p.GetHistory(ctx, symbol, period); series != nil && len(series.Bars) > 0 {
			return series
		}
	}
	return nil
}

// periodCovering returns the smallest standard period whose window,
// anchored at to, contains from.
func periodCovering(from, to time.Time) models.HistoryPeriod {
	for _, period := range models.AllPeriods {
		if period == models.PeriodYTD {
			continue
		}
		if !period.Start(to).After(from) {
			return period
		}
	}
	return models.Period10Y
}

// trimToRange keeps bars dated within [from, to].
func trimToRange(bars []models.HistoryBar, from, to time.Time) []models.HistoryBar {
	kept := make([]models.HistoryBar, 0, len(bars))
	for _, bar := range bars {
		if bar.Date.Before(from) || bar.Date.After(to) {
			continue
		}
		kept = append(kept, bar)
	}
	return kept
}

// Ensure Service implements BackfillService
var _ interfaces.BackfillService = (*Service)(nil)
