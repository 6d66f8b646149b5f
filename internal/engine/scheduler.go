package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs the poll cycle on a fixed interval. Cycle errors are
// transient here: logged, then retried on the next tick.
type Scheduler struct {
	cron        *cron.Cron
	engine      *Engine
	ctx         context.Context
	stopOnFound bool
	found       chan struct{}
	log         *slog.Logger
}

// NewScheduler creates a Scheduler ticking every interval. ctx bounds the
// in-flight cycle so an interrupt lands at a clean suspension point.
func NewScheduler(
	eng *Engine,
	ctx context.Context,
	interval time.Duration,
	stopOnFound bool,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:        c,
		engine:      eng,
		ctx:         ctx,
		stopOnFound: stopOnFound,
		found:       make(chan struct{}, 1),
		log:         log,
	}

	if _, err := c.AddFunc("@every "+interval.String(), s.runCycle); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop stops ticking; the returned context is done once any running cycle
// finishes.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Found signals once when a cycle finds availability and stop-on-found is
// configured.
func (s *Scheduler) Found() <-chan struct{} {
	return s.found
}

func (s *Scheduler) runCycle() {
	if s.ctx.Err() != nil {
		return
	}

	found, err := s.engine.RunCycle(s.ctx)
	if err != nil {
		s.log.Error("cycle failed, retrying on next tick", "error", err)
		return
	}

	if found && s.stopOnFound {
		select {
		case s.found <- struct{}{}:
		default:
		}
	}
}
