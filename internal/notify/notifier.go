// Package notify defines the notification interface and channel
// implementations for availability alerts.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/parkwatch/parkwatch/internal/metrics"
)

// Message is one notification: a short title and a plain-text body.
type Message struct {
	Title string
	Body  string
}

// ErrNotConfigured marks a channel skipped because its settings are
// incomplete. Skips are logged with their reason and never count as
// delivery failures.
var ErrNotConfigured = errors.New("channel not configured")

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Result reports one channel's outcome within a dispatch.
type Result struct {
	Channel string
	Err     error
}

// Skipped reports whether the channel was skipped as unconfigured rather
// than having failed.
func (r Result) Skipped() bool {
	return errors.Is(r.Err, ErrNotConfigured)
}

// Dispatcher fans one message out to a set of channels. Channels are
// attempted independently: one failure never blocks or masks another, and
// there is no retry within a single dispatch — retry, if any, belongs to
// the caller on its next cycle.
type Dispatcher struct {
	channels []Notifier
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given channels.
func NewDispatcher(log *slog.Logger, channels ...Notifier) *Dispatcher {
	return &Dispatcher{channels: channels, log: log}
}

// Channels returns the configured channel names, for startup logging.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch attempts delivery on every channel and returns per-channel
// results in channel order.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) []Result {
	results := make([]Result, 0, len(d.channels))

	for _, ch := range d.channels {
		err := ch.Send(ctx, msg)
		switch {
		case err == nil:
			d.log.Info("notification sent", "channel", ch.Name())
			metrics.NotificationsSentTotal.WithLabelValues(ch.Name()).Inc()
		case errors.Is(err, ErrNotConfigured):
			d.log.Warn("notification skipped", "channel", ch.Name(), "reason", err)
		default:
			d.log.Error("notification failed", "channel", ch.Name(), "error", err)
			metrics.NotificationFailuresTotal.WithLabelValues(ch.Name()).Inc()
		}
		results = append(results, Result{Channel: ch.Name(), Err: err})
	}

	return results
}
