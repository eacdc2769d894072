package controller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/compose"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/storage"
)

var t0 = time.Date(2026, 10, 19, 14, 5, 30, 0, time.UTC)

type sent struct {
	static     bool
	frames     []data.Frame
	useEffects bool
}

type fakeDriver struct {
	mu       sync.Mutex
	sends    []sent
	err      error
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (d *fakeDriver) record(s sent) error {
	if d.inFlight.Add(1) > 1 {
		d.overlaps.Add(1)
	}
	defer d.inFlight.Add(-1)
	time.Sleep(100 * time.Microsecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sends = append(d.sends, s)
	return nil
}

func (d *fakeDriver) SendStatic(_ context.Context, text string) error {
	return d.record(sent{static: true, frames: []data.Frame{{Text: text}}})
}

func (d *fakeDriver) SendFrames(_ context.Context, frames []data.Frame, useEffects bool) error {
	return d.record(sent{frames: frames, useEffects: useEffects})
}

func (d *fakeDriver) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sends)
}

func (d *fakeDriver) last() sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sends[len(d.sends)-1]
}

type fakeSensors struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeSensors) Snapshot(context.Context) (data.SensorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return data.SensorSnapshot{}, f.err
	}
	return data.SensorSnapshot{CO2: "700", PM25: "2", VOC: "100", Humidity: "45", Temperature: "21.0"}, nil
}

func (f *fakeSensors) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fixture struct {
	clock      *clock.FakeClock
	driver     *fakeDriver
	sensors    *fakeSensors
	controller *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.Fake(t0)
	driver := &fakeDriver{}
	sensors := &fakeSensors{}
	layout := compose.DefaultLayout()
	layout.Location = time.UTC
	c := New(Options{
		Clock:   clk,
		Store:   storage.NewNotificationStore(storage.DefaultTTL),
		Sensors: sensors,
		Driver:  driver,
		Layout:  layout,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{clock: clk, driver: driver, sensors: sensors, controller: c}
}

func texts(frames []data.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Text
	}
	return out
}
