package aggregator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	backfillYears    = 10
	backfillCooldown = 2 * time.Hour
)

// pendingBackfills tracks in-flight (or recently finished) backfills per
// normalized symbol so that concurrent cold-history requests launch
// exactly one task.
type pendingBackfills struct {
	mu      sync.Mutex
	markers map[string]time.Time // symbol -> queued at (UTC)
	now     func() time.Time
}

func newPendingBackfills(now func() time.Time) *pendingBackfills {
	if now == nil {
		now = time.Now
	}
	return &pendingBackfills{
		markers: make(map[string]time.Time),
		now:     now,
	}
}

// tryAcquire atomically records a marker for symbol. It returns false when
// an unexpired marker already exists.
func (p *pendingBackfills) tryAcquire(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if queued, exists := p.markers[symbol]; exists {
		if p.now().Sub(queued) < backfillCooldown {
			return false
		}
		// Stale marker from a task that never released (crash); replace it.
	}
	p.markers[symbol] = p.now().UTC()
	return true
}

// release removes the marker for symbol.
func (p *pendingBackfills) release(symbol string) {
	p.mu.Lock()
	delete(p.markers, symbol)
	p.mu.Unlock()
}

// sweepExpired clears markers older than the cooldown.
func (p *pendingBackfills) sweepExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for symbol, queued := range p.markers {
		if p.now().Sub(queued) >= backfillCooldown {
			delete(p.markers, symbol)
			removed++
		}
	}
	return removed
}

func (p *pendingBackfills) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.markers)
}

// scheduleBackfill launches a detached backfill for symbol unless one is
// already pending. The task runs under the service's lifetime context, not
// the originating request's, so a completed request does not cancel it.
func (s *Service) scheduleBackfill(symbol string) {
	if s.backfill == nil || s.history == nil {
		return
	}

	symbol = normalizeSymbol(symbol)
	if !s.pending.tryAcquire(symbol) {
		s.logger.Debug().Str("symbol", symbol).Msg("Backfill already pending, skipping")
		return
	}

	taskID := uuid.NewString()
	s.logger.Info().Str("symbol", symbol).Str("task_id", taskID).Msg("Scheduling history backfill")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("symbol", symbol).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in backfill task")
			}
		}()
		s.runBackfill(s.lifetime, symbol, taskID)

		// Keep the marker up for the cooldown so a failed load is not
		// retried immediately, then allow a fresh attempt.
		select {
		case <-s.lifetime.Done():
		case <-time.After(backfillCooldown):
		}
		s.pending.release(symbol)
	}()
}

// runBackfill fetches a long history window for symbol, persists it, and
// invalidates the symbol's cache entries once rows have landed.
func (s *Service) runBackfill(ctx context.Context, symbol, taskID string) {
	to := s.now()
	from := to.AddDate(-backfillYears, 0, 0)

	report, err := s.backfill.LoadHistory(ctx, []string{symbol}, from, to)
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Str("task_id", taskID).Err(err).Msg("History backfill failed")
		return
	}

	if report.RecordsInserted > 0 {
		// Future requests should see the datastore rows, not the stale
		// network-served entries.
		s.Invalidate(symbol)
		s.logger.Info().
			Str("symbol", symbol).
			Str("task_id", taskID).
			Int("records", report.RecordsInserted).
			Msg("History backfill completed")
	} else {
		s.logger.Warn().
			Str("symbol", symbol).
			Str("task_id", taskID).
			Strs("errors", report.Errors).
			Msg("History backfill inserted no rows")
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
