package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/compose"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/display"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/storage"
)

const defaultSendTimeout = 5 * time.Second

// Options wires a Controller.
type Options struct {
	Clock       clock.Clock
	Store       *storage.NotificationStore
	Sensors     compose.SensorSource
	Driver      display.Driver
	Layout      compose.Layout
	SendTimeout time.Duration // bound on a single dispatch
	Logger      *slog.Logger
}

type Controller struct {
	mu          sync.Mutex
	clock       clock.Clock
	store       *storage.NotificationStore
	sensors     compose.SensorSource
	driver      display.Driver
	layout      compose.Layout
	sendTimeout time.Duration
	logger      *slog.Logger

	poweredOn bool
	lastGood  *data.Composition // last cyclic composition built from fresh readings
	pending   bool              // last dispatch failed and should be retried

	listenersMu    sync.Mutex
	powerListeners []func(on bool)
}

// New returns a controller for a sign that starts switched on.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Store == nil {
		opts.Store = storage.NewNotificationStore(storage.DefaultTTL)
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		clock:       opts.Clock,
		store:       opts.Store,
		sensors:     opts.Sensors,
		driver:      opts.Driver,
		layout:      opts.Layout,
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger,
		poweredOn:   true,
	}
}

// Notify stores a notification and redraws the sign immediately. The
// notification is kept even when the redraw fails; the error is returned
// for logging only.
func (c *Controller) Notify(ctx context.Context, text string) (data.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.Add(text, c.clock.Now())
	c.logger.Info("notification added", "id", n.ID, "text", text)
	_, err := c.redrawLocked(ctx)
	return n, err
}

// SetPower switches the sign on or off and redraws it. Notifications keep
// accruing and expiring while the sign is off.
func (c *Controller) SetPower(ctx context.Context, on bool) error {
	c.mu.Lock()
	changed := c.poweredOn != on
	c.poweredOn = on
	c.logger.Info("power set", "on", on)
	_, err := c.redrawLocked(ctx)
	c.mu.Unlock()

	if changed {
		c.notifyPower(on)
	}
	return err
}

func (c *Controller) PoweredOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poweredOn
}

// OnPowerChange registers fn to be called after every power change. fn runs
// outside the controller lock.
func (c *Controller) OnPowerChange(fn func(on bool)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.powerListeners = append(c.powerListeners, fn)
}

func (c *Controller) notifyPower(on bool) {
	c.listenersMu.Lock()
	listeners := append([]func(bool){}, c.powerListeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(on)
	}
}

// Notifications returns the pending notifications, newest first.
func (c *Controller) Notifications() []data.Notification {
	return c.store.Snapshot()
}

// Now is the controller's clock reading.
func (c *Controller) Now() time.Time {
	return c.clock.Now()
}

// Prune drops expired notifications without redrawing.
func (c *Controller) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Prune(now)
}

// Pending reports whether the last dispatch failed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Redraw recomposes and dispatches the whole frame sequence.
func (c *Controller) Redraw(ctx context.Context) (data.Composition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redrawLocked(ctx)
}

func (c *Controller) redrawLocked(ctx context.Context) (data.Composition, error) {
	now := c.clock.Now()
	comp, composeErr := compose.Compose(ctx, now, c.poweredOn, c.store.Snapshot(), c.sensors, c.layout)
	if composeErr != nil {
		c.logger.Error("composing display failed, showing fallback", "error", composeErr)
		if c.lastGood != nil {
			comp = *c.lastGood
		} else {
			comp = compose.Minimal(now, c.layout)
		}
	} else if comp.Mode == data.ModeCyclic {
		good := comp
		c.lastGood = &good
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := display.Dispatch(sendCtx, c.driver, comp); err != nil {
		c.pending = true
		c.logger.Error("sending to display failed, will retry", "mode", comp.Mode, "error", err)
		return comp, fmt.Errorf("dispatching %s frames: %w", comp.Mode, err)
	}
	c.pending = false
	c.logger.Debug("display updated", "mode", comp.Mode, "frames", len(comp.Frames))

	if composeErr != nil {
		// Sensors from a fallback composition are stale.
		comp.Sensors = nil
		return comp, composeErr
	}
	return comp, nil
}
