// internal/alerting/alerter.go
package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/anomaly"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// DefaultCooldown spaces out repeated alerts for the same metric.
const DefaultCooldown = 30 * time.Minute

// Notifier posts text to the sign.
type Notifier interface {
	Notify(ctx context.Context, text string) (data.Notification, error)
}

// Alerter turns out-of-range readings into sign notifications, at most one
// per metric per cooldown.
type Alerter struct {
	detector *anomaly.Detector
	notifier Notifier
	clock    clock.Clock
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[data.Metric]time.Time
}

func NewAlerter(detector *anomaly.Detector, notifier Notifier, clk clock.Clock, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Alerter{
		detector: detector,
		notifier: notifier,
		clock:    clk,
		cooldown: cooldown,
		logger:   logger,
		lastSent: make(map[data.Metric]time.Time),
	}
}

// Observe checks a snapshot and posts any new alerts.
func (a *Alerter) Observe(ctx context.Context, snapshot data.SensorSnapshot) {
	if !a.detector.Enabled() {
		return
	}
	a.ProcessAlerts(ctx, a.detector.Check(snapshot))
}

// ProcessAlerts posts alerts whose metric is out of its cooldown.
func (a *Alerter) ProcessAlerts(ctx context.Context, alerts []data.Alert) {
	if len(alerts) == 0 {
		return
	}

	now := a.clock.Now()
	for _, alert := range alerts {
		a.mu.Lock()
		last, seen := a.lastSent[alert.Metric]
		due := !seen || now.Sub(last) >= a.cooldown
		if due {
			a.lastSent[alert.Metric] = now
		}
		a.mu.Unlock()

		if !due {
			continue
		}
		a.logger.Info("posting air quality alert", "metric", alert.Metric, "message", alert.Message)
		if _, err := a.notifier.Notify(ctx, alert.Message); err != nil {
			a.logger.Warn("alert stored but display update failed", "error", err)
		}
	}
}
