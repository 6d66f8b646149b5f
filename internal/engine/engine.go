// Package engine orchestrates the poll cycle: fetch availability per unit,
// classify every target date, decide whether to alert, and dispatch
// notifications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/parkwatch/parkwatch/internal/availability"
	"github.com/parkwatch/parkwatch/internal/honk"
	"github.com/parkwatch/parkwatch/internal/metrics"
	"github.com/parkwatch/parkwatch/internal/notify"
	domain "github.com/parkwatch/parkwatch/pkg/types"
)

const (
	alertTitle     = "Palisades Parking Available!"
	heartbeatTitle = "Parking Checker Heartbeat"
)

// errAllLocationsFailed means no location produced any usable data this
// cycle. Fatal in one-shot mode, transient in repeat mode.
var errAllLocationsFailed = errors.New("no location produced availability data")

// Engine drives the poll loop. It is the sole owner of the upstream
// session: repairs are requested by fetch errors and applied once at the
// top of the next cycle, never mid-cycle.
type Engine struct {
	fetcher    honk.Fetcher
	dispatcher *notify.Dispatcher
	log        *slog.Logger
	out        io.Writer

	locations   []domain.Location
	dates       []string
	notifyDates map[string]bool // empty means every date is in alert scope
	heartbeat   bool

	needsRepair bool
	nowFunc     func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithOutput redirects the human-readable cycle report (default stdout).
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithNotifyDates restricts which dates may trigger an alert. The
// heartbeat summary still covers every date.
func WithNotifyDates(dates []string) Option {
	return func(e *Engine) {
		e.notifyDates = make(map[string]bool, len(dates))
		for _, d := range dates {
			e.notifyDates[d] = true
		}
	}
}

// WithHeartbeat enables a status-summary notification every cycle,
// regardless of availability.
func WithHeartbeat(enabled bool) Option {
	return func(e *Engine) { e.heartbeat = enabled }
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(e *Engine) { e.nowFunc = f }
}

// New creates an Engine watching the given locations and resolved dates.
func New(
	f honk.Fetcher,
	d *notify.Dispatcher,
	locations []domain.Location,
	dates []string,
	opts ...Option,
) *Engine {
	e := &Engine{
		fetcher:    f,
		dispatcher: d,
		log:        slog.Default(),
		out:        os.Stdout,
		locations:  locations,
		dates:      dates,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle executes one full poll pass and reports whether any in-scope
// date is bookable. A failed fetch unit is skipped; a location with no
// successful units is reported and the cycle continues for the others.
func (e *Engine) RunCycle(ctx context.Context) (bool, error) {
	start := e.nowFunc()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		metrics.CyclesTotal.Inc()
	}()

	log := e.log.With("cycle", uuid.NewString()[:8])

	if e.needsRepair {
		log.Info("re-establishing upstream session")
		metrics.SessionRepairsTotal.Inc()
		if err := e.fetcher.Reestablish(ctx); err != nil {
			return false, fmt.Errorf("repairing session: %w", err)
		}
		e.needsRepair = false
	}

	fmt.Fprintf(e.out, "\n  Checking at %s\n", start.Format("2006-01-02 15:04:05"))

	merged, err := e.fetchAll(ctx, log)
	if err != nil {
		return false, err
	}

	results, found := e.classifyAll(merged)

	if len(results) == 0 {
		metrics.AvailabilityFound.Set(0)
		return false, errAllLocationsFailed
	}

	e.notifyCycle(ctx, log, results, found, start)

	if found {
		metrics.AvailabilityFound.Set(1)
	} else {
		metrics.AvailabilityFound.Set(0)
	}
	return found, nil
}

// fetchAll resolves the cycle's fetch units and merges each location's
// successful month payloads.
func (e *Engine) fetchAll(
	ctx context.Context,
	log *slog.Logger,
) (map[string]domain.RawAvailability, error) {
	units, err := availability.FetchUnits(e.locations, e.dates)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]domain.RawAvailability)

	for _, unit := range units {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		avail, err := e.fetcher.Fetch(ctx, unit)
		if err != nil {
			if errors.Is(err, honk.ErrSessionUnavailable) {
				// No identity works; nothing else can be fetched.
				return nil, err
			}
			metrics.FetchFailuresTotal.Inc()
			if errors.Is(err, honk.ErrSessionExpired) {
				// Repair happens before the next cycle, not the next unit.
				e.needsRepair = true
			}
			log.Error("fetch failed, skipping unit", "unit", unit.String(), "error", err)
			continue
		}

		metrics.FetchesTotal.Inc()
		dst := merged[unit.Location.Key]
		if dst == nil {
			dst = make(domain.RawAvailability, len(avail))
			merged[unit.Location.Key] = dst
		}
		for k, v := range avail {
			dst[k] = v
		}
	}

	return merged, nil
}

// classifyAll prints one verdict line per (location, date) pair and reports
// whether any in-scope pair is bookable.
func (e *Engine) classifyAll(
	merged map[string]domain.RawAvailability,
) ([]availability.LocationResult, bool) {
	var results []availability.LocationResult
	found := false

	for _, loc := range e.locations {
		avail, ok := merged[loc.Key]
		if !ok {
			fmt.Fprintf(e.out, "  %s: failed to fetch availability data\n", loc.Label)
			continue
		}

		statuses := make([]domain.DateStatus, 0, len(e.dates))
		for _, date := range e.dates {
			st := availability.Classify(avail, date)
			fmt.Fprintln(e.out, availability.FormatStatus(loc, &st))
			if st.Available() && e.inAlertScope(date) {
				found = true
			}
			statuses = append(statuses, st)
		}
		results = append(results, availability.LocationResult{
			Location: loc,
			Statuses: statuses,
		})
	}

	return results, found
}

func (e *Engine) notifyCycle(
	ctx context.Context,
	log *slog.Logger,
	results []availability.LocationResult,
	found bool,
	start time.Time,
) {
	if len(e.dispatcher.Channels()) == 0 {
		if found {
			log.Info("availability found, no notification channels configured")
		}
		return
	}

	if found {
		if body := availability.BuildAlertMessage(e.alertScope(results)); body != "" {
			e.dispatcher.Dispatch(ctx, notify.Message{Title: alertTitle, Body: body})
		}
	}

	if e.heartbeat {
		// The heartbeat covers every pair, not just the alert scope.
		body := fmt.Sprintf(
			"Checker is running as of %s\n\n%s",
			start.Format("2006-01-02 15:04:05"),
			availability.BuildStatusSummary(results),
		)
		e.dispatcher.Dispatch(ctx, notify.Message{Title: heartbeatTitle, Body: body})
	}
}

func (e *Engine) inAlertScope(date string) bool {
	if len(e.notifyDates) == 0 {
		return true
	}
	return e.notifyDates[date]
}

// alertScope filters results down to the dates allowed to trigger alerts.
func (e *Engine) alertScope(
	results []availability.LocationResult,
) []availability.LocationResult {
	if len(e.notifyDates) == 0 {
		return results
	}
	scoped := make([]availability.LocationResult, 0, len(results))
	for _, res := range results {
		var statuses []domain.DateStatus
		for i := range res.Statuses {
			if e.notifyDates[res.Statuses[i].Date] {
				statuses = append(statuses, res.Statuses[i])
			}
		}
		scoped = append(scoped, availability.LocationResult{
			Location: res.Location,
			Statuses: statuses,
		})
	}
	return scoped
}

// Run executes the first cycle immediately, then repeats on a fixed
// interval until ctx is canceled or a stop condition hits. An interval of
// zero (or less) means one-shot: the first cycle's error is fatal.
func (e *Engine) Run(
	ctx context.Context,
	interval time.Duration,
	stopOnFound bool,
) error {
	found, err := e.RunCycle(ctx)

	if interval <= 0 {
		return err
	}

	switch {
	case err != nil && ctx.Err() != nil:
		return nil // interrupted mid-cycle
	case err != nil:
		// Transient in repeat mode: the scheduler retries on its tick.
		e.log.Error("cycle failed, retrying on interval", "interval", interval, "error", err)
	case found && stopOnFound:
		fmt.Fprintln(e.out, "\n  Availability found. Stopping.")
		return nil
	}

	sched, err := NewScheduler(e, ctx, interval, stopOnFound, e.log)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}
	sched.Start()

	select {
	case <-ctx.Done():
		e.log.Info("stopping")
	case <-sched.Found():
		fmt.Fprintln(e.out, "\n  Availability found. Stopping.")
	}

	<-sched.Stop().Done()
	return nil
}
