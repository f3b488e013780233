package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultCheckInterval is how often the watcher samples feed health when no
// interval is given.
const defaultCheckInterval = 5 * time.Second

// HealthSource reports whether the market data feed is currently healthy.
type HealthSource interface {
	Healthy() bool
}

// HealthWatcher samples a HealthSource and raises operator alerts on
// transitions: EventFeedUnhealthy once the feed has been unhealthy for longer
// than the configured threshold, and EventFeedRecovered when data flows again
// after an alert.
type HealthWatcher struct {
	source   HealthSource
	notifier *Notifier
	interval time.Duration
	after    time.Duration
	logger   *slog.Logger
}

// NewHealthWatcher creates a watcher that checks source every interval and
// alerts after the feed has been unhealthy for at least the given threshold.
// A non-positive interval falls back to the default.
func NewHealthWatcher(source HealthSource, notifier *Notifier, interval, after time.Duration, logger *slog.Logger) *HealthWatcher {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &HealthWatcher{
		source:   source,
		notifier: notifier,
		interval: interval,
		after:    after,
		logger:   logger.With(slog.String("component", "health_watcher")),
	}
}

// Run samples feed health until ctx is cancelled. Alert delivery failures are
// logged and do not stop the watcher.
func (w *HealthWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var unhealthySince time.Time
	alerted := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx, &unhealthySince, &alerted)
		}
	}
}

func (w *HealthWatcher) check(ctx context.Context, unhealthySince *time.Time, alerted *bool) {
	now := time.Now()

	if w.source.Healthy() {
		if *alerted {
			w.logger.InfoContext(ctx, "feed recovered",
				slog.Duration("outage", now.Sub(*unhealthySince)),
			)
			if err := w.notifier.Notify(ctx, EventFeedRecovered,
				"Feed recovered",
				fmt.Sprintf("Market data is flowing again after %s.", now.Sub(*unhealthySince).Round(time.Second)),
			); err != nil {
				w.logger.WarnContext(ctx, "recovery alert failed", slog.String("error", err.Error()))
			}
		}
		*unhealthySince = time.Time{}
		*alerted = false
		return
	}

	if unhealthySince.IsZero() {
		*unhealthySince = now
		return
	}

	if !*alerted && now.Sub(*unhealthySince) >= w.after {
		w.logger.WarnContext(ctx, "feed unhealthy",
			slog.Duration("since", now.Sub(*unhealthySince)),
		)
		if err := w.notifier.Notify(ctx, EventFeedUnhealthy,
			"Feed unhealthy",
			fmt.Sprintf("No market data received for %s.", now.Sub(*unhealthySince).Round(time.Second)),
		); err != nil {
			w.logger.WarnContext(ctx, "unhealthy alert failed", slog.String("error", err.Error()))
		}
		*alerted = true
	}
}
