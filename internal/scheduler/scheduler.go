package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/muzkat/reminder/internal/notify"
)

// Scheduler drives the polling cadence: once per tick it selects the due,
// not-yet-notified reminders and feeds them one by one to the dispatcher.
// Cycles run synchronously and never overlap; a tick that fires while a cycle
// is still running is skipped, not queued.
type Scheduler struct {
	store      notify.Store
	dispatcher *notify.Dispatcher
	interval   time.Duration
	clock      clock.Clock
	log        zerolog.Logger
}

func New(store notify.Store, dispatcher *notify.Dispatcher, interval time.Duration, clk clock.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		clock:      clk,
		log:        log,
	}
}

// Start blocks until ctx is cancelled. Cancellation lets the in-flight cycle
// finish its current item before the loop halts.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	// Run the first check immediately
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
			// Drop a tick that fired while the cycle was running
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	// The loop must keep ticking no matter what escapes a cycle.
	defer func() {
		if p := recover(); p != nil {
			s.log.Error().Interface("panic", p).Msg("cycle panicked")
		}
	}()

	now := s.clock.Now().UTC()
	reminds, err := s.store.SelectDue(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to select due reminders, cycle aborted")
		return
	}
	if len(reminds) == 0 {
		return
	}
	s.log.Info().Int("count", len(reminds)).Msg("found due reminders")

	for _, remind := range reminds {
		if ctx.Err() != nil {
			// Shutting down; undelivered items are re-selected on next start.
			return
		}
		s.dispatcher.Process(ctx, remind)
	}
}
