package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []data.SensorSnapshot
}

func (r *recordingObserver) Observe(_ context.Context, s data.SensorSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func newScheduler(f *fixture, observer SnapshotObserver) *Scheduler {
	return NewScheduler(f.controller, f.clock, time.Second, observer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTick_RedrawsOnMinuteBoundaryOnly(t *testing.T) {
	f := newFixture(t)
	s := newScheduler(f, nil)
	ctx := context.Background()

	s.Tick(ctx) // 14:05:30, first tick always draws
	assert.Equal(t, 1, f.driver.count())

	for i := 0; i < 29; i++ {
		f.clock.Advance(time.Second)
		s.Tick(ctx)
	}
	assert.Equal(t, 1, f.driver.count(), "no redraw within the minute")

	f.clock.Advance(time.Second) // 14:06:00
	s.Tick(ctx)
	assert.Equal(t, 2, f.driver.count())
	assert.Equal(t, "19.10.2026 14:06", f.driver.last().frames[0].Text)
}

func TestTick_PrunesEveryTick(t *testing.T) {
	f := newFixture(t)
	s := newScheduler(f, nil)
	ctx := context.Background()

	_, err := f.controller.Notify(ctx, "short lived")
	require.NoError(t, err)
	s.Tick(ctx)

	f.clock.Advance(2*time.Hour - 30*time.Second) // 16:05:00, boundary
	s.Tick(ctx)
	require.Len(t, f.controller.Notifications(), 1)

	f.clock.Advance(30 * time.Second) // 16:05:30, exactly two hours old
	s.Tick(ctx)
	assert.Empty(t, f.controller.Notifications())
}

func TestTick_RetriesFailedDispatch(t *testing.T) {
	f := newFixture(t)
	s := newScheduler(f, nil)
	ctx := context.Background()

	f.driver.setErr(errors.New("serial write failed"))
	s.Tick(ctx)
	require.True(t, f.controller.Pending())

	f.driver.setErr(nil)
	f.clock.Advance(time.Second)
	s.Tick(ctx)

	assert.False(t, f.controller.Pending())
	assert.Equal(t, 1, f.driver.count())
}

func TestTick_ObservesFreshSnapshots(t *testing.T) {
	f := newFixture(t)
	observer := &recordingObserver{}
	s := newScheduler(f, observer)
	ctx := context.Background()

	s.Tick(ctx)
	assert.Equal(t, 1, observer.count())

	f.sensors.setErr(errors.New("down"))
	f.clock.Advance(time.Minute)
	s.Tick(ctx)
	assert.Equal(t, 1, observer.count(), "fallback frames carry no snapshot")
}

func TestTick_SurvivesPanics(t *testing.T) {
	f := newFixture(t)
	f.controller.driver = panickingDriver{}
	s := newScheduler(f, nil)

	assert.NotPanics(t, func() { s.safeTick(context.Background()) })
}

func TestRun_StartsAndStops(t *testing.T) {
	f := newFixture(t)
	s := newScheduler(f, nil)
	assert.Equal(t, StateIdle, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	f.clock.WaitForTimers(1)
	require.Eventually(t, func() bool { return f.driver.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, s.State())

	f.clock.Advance(30 * time.Second) // reaches 14:06:00
	require.Eventually(t, func() bool { return f.driver.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, s.State())
	assert.Error(t, s.Run(context.Background()), "stopped is terminal")
}

func TestNextMinute(t *testing.T) {
	assert.Equal(t, time.Date(2026, 10, 19, 14, 6, 0, 0, time.UTC), NextMinute(t0))
	assert.Equal(t, time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC), NextMinute(time.Date(2026, 10, 19, 14, 6, 0, 0, time.UTC)))
}

type panickingDriver struct{}

func (panickingDriver) SendStatic(context.Context, string) error { panic("boom") }

func (panickingDriver) SendFrames(context.Context, []data.Frame, bool) error { panic("boom") }
