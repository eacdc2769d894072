package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// DefaultTick is the scheduler's wake-up interval.
const DefaultTick = time.Second

// State of a Scheduler. Stopped is terminal.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "idle"
}

// SnapshotObserver receives the readings of every scheduled redraw that
// fetched fresh sensor data.
type SnapshotObserver interface {
	Observe(ctx context.Context, snapshot data.SensorSnapshot)
}

// Scheduler wakes up every tick, prunes expired notifications and redraws
// the sign when a new minute starts or the previous dispatch failed.
type Scheduler struct {
	controller *Controller
	clock      clock.Clock
	interval   time.Duration
	observer   SnapshotObserver
	logger     *slog.Logger

	state        atomic.Int32
	nextBoundary time.Time // zero until the first redraw
}

func NewScheduler(c *Controller, clk clock.Clock, interval time.Duration, observer SnapshotObserver, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Scheduler{
		controller: c,
		clock:      clk,
		interval:   interval,
		observer:   observer,
		logger:     logger,
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("scheduler is %s", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	s.safeTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

// safeTick keeps the loop alive through a panic in a driver or sensor source.
func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scheduler tick panicked", "panic", fmt.Sprintf("%v", rec))
		}
	}()
	s.Tick(ctx)
}

// Tick runs one iteration of the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	if removed := s.controller.Prune(now); removed > 0 {
		s.logger.Info("expired notifications removed", "count", removed)
	}

	switch {
	case !now.Before(s.nextBoundary):
		s.nextBoundary = NextMinute(now)
		comp, err := s.controller.Redraw(ctx)
		if err == nil && comp.Sensors != nil && s.observer != nil {
			s.observer.Observe(ctx, *comp.Sensors)
		}
	case s.controller.Pending():
		s.logger.Info("retrying display update")
		_, _ = s.controller.Redraw(ctx)
	}
}

// NextMinute returns the start of the minute after t.
func NextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}
