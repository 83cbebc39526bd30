package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/marketd/internal/models"
)

// sweepSchedule bounds how long expired cache entries and stale backfill
// markers can linger.
const sweepSchedule = "*/10 * * * *"

// scheduler runs the background jobs: symbol universe refresh and
// cache/marker sweeps.
type scheduler struct {
	app  *App
	cron *cron.Cron
}

func newScheduler(a *App) (*scheduler, error) {
	s := &scheduler{
		app:  a,
		cron: cron.New(),
	}

	if _, err := s.cron.AddFunc(sweepSchedule, func() {
		a.Market.SweepExpired()
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}

	refreshCron := a.Config.Scheduler.SymbolRefreshCron
	if refreshCron != "" {
		if _, err := s.cron.AddFunc(refreshCron, s.refreshSymbolUniverse); err != nil {
			return nil, fmt.Errorf("invalid symbol refresh schedule %q: %w", refreshCron, err)
		}
	}

	return s, nil
}

func (s *scheduler) start() {
	s.cron.Start()
	s.app.Logger.Info().
		Str("symbol_refresh", s.app.Config.Scheduler.SymbolRefreshCron).
		Strs("exchanges", s.app.Config.Scheduler.Exchanges).
		Msg("Scheduler started")
}

// stop halts the cron and waits for running jobs to finish.
func (s *scheduler) stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.app.Logger.Warn().Msg("Scheduler jobs did not finish in time")
	}
}

// refreshSymbolUniverse pulls symbol listings for the configured exchanges
// from the first provider that supports them, persists the records, and
// folds them into the search index.
func (s *scheduler) refreshSymbolUniverse() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	total := 0

	for _, exchange := range s.app.Config.Scheduler.Exchanges {
		records := s.listSymbols(ctx, exchange)
		if len(records) == 0 {
			s.app.Logger.Warn().Str("exchange", exchange).Msg("Symbol refresh: no listings available")
			continue
		}

		if s.app.Store != nil {
			if err := s.app.Store.UpsertSymbols(ctx, records); err != nil {
				s.app.Logger.Warn().Str("exchange", exchange).Err(err).Msg("Symbol refresh: persist failed")
			}
		}

		for _, record := range records {
			s.app.SymbolIndex.AddOrUpdate(record)
		}
		total += len(records)
	}

	if total > 0 {
		s.app.Logger.Info().
			Int("symbols", total).
			Dur("elapsed", time.Since(start)).
			Msg("Symbol refresh: complete")
	}
}

// listSymbols walks the provider ladder for one exchange's listings.
func (s *scheduler) listSymbols(ctx context.Context, exchange string) []models.SymbolRecord {
	for _, p := range s.app.Providers {
		if !p.Available() {
			continue
		}
		if records := p.ListSymbols(ctx, exchange); len(records) > 0 {
			return records
		}
	}
	return nil
}
