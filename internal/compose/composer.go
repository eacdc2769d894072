package compose

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// ScrollPeriod is how long a new notification owns the whole sign.
const ScrollPeriod = 60 * time.Second

// ClockFormat renders the clock line as DD.MM.YYYY HH:MM.
const ClockFormat = "02.01.2006 15:04"

// SensorSource supplies one fresh snapshot per call.
type SensorSource interface {
	Snapshot(ctx context.Context) (data.SensorSnapshot, error)
}

// Layout holds the geometry and timing of the rendered frames.
type Layout struct {
	Width       int
	Height      int
	CycleTime   time.Duration  // how long each lower-line step is shown
	ScrollSpeed int            // driver-specific scroll speed
	Location    *time.Location // zone of the clock line; nil means time.Local
}

// DefaultLayout matches a 144x16 Mobitec sign.
func DefaultLayout() Layout {
	return Layout{
		Width:       144,
		Height:      16,
		CycleTime:   3 * time.Second,
		ScrollSpeed: 60,
	}
}

func (l Layout) location() *time.Location {
	if l.Location == nil {
		return time.Local
	}
	return l.Location
}

// Compose builds the frame sequence for now. An error is returned only when
// the sensor source fails; no frames are produced in that case.
func Compose(ctx context.Context, now time.Time, poweredOn bool, notifications []data.Notification, sensors SensorSource, layout Layout) (data.Composition, error) {
	if !poweredOn {
		return Blank(now), nil
	}

	if len(notifications) > 0 {
		newest := notifications[0]
		if AgeSeconds(newest.Age(now)) < int64(ScrollPeriod/time.Second) {
			return data.Composition{
				Mode:       data.ModeScroll,
				Frames:     []data.Frame{ScrollFrame(newest.Text, layout)},
				UseEffects: true,
				ComposedAt: now,
			}, nil
		}
	}

	snapshot, err := sensors.Snapshot(ctx)
	if err != nil {
		return data.Composition{}, fmt.Errorf("reading sensors: %w", err)
	}
	line, err := SensorLine(snapshot)
	if err != nil {
		return data.Composition{}, err
	}

	frames := make([]data.Frame, 0, 2+2*len(notifications))
	frames = append(frames,
		ClockFrame(now, layout),
		lowerFrame(line, layout),
	)
	for _, n := range notifications {
		frames = append(frames,
			upperFrame(AgeLabel(n.Age(now))),
			lowerFrame(n.Text, layout),
		)
	}
	// The driver holds the last frame until the cycle restarts; a duration
	// there would blank the sign between cycles.
	frames[len(frames)-1].Duration = 0

	return data.Composition{
		Mode:       data.ModeCyclic,
		Frames:     frames,
		Sensors:    &snapshot,
		ComposedAt: now,
	}, nil
}

// Blank is the composition of a switched-off sign.
func Blank(now time.Time) data.Composition {
	return data.Composition{
		Mode:       data.ModeBlank,
		Frames:     []data.Frame{{Text: ""}},
		ComposedAt: now,
	}
}

// Minimal is shown when the sensors fail before any cyclic composition
// succeeded: just the clock line.
func Minimal(now time.Time, layout Layout) data.Composition {
	return data.Composition{
		Mode:       data.ModeCyclic,
		Frames:     []data.Frame{ClockFrame(now, layout)},
		ComposedAt: now,
	}
}

// ClockFrame shows now on the upper line. It has no cycle duration, so it
// stays visible through every step of the cycle.
func ClockFrame(now time.Time, layout Layout) data.Frame {
	return upperFrame(now.In(layout.location()).Format(ClockFormat))
}

// ScrollFrame renders text as an endless right-to-left scroll over the
// whole sign.
func ScrollFrame(text string, layout Layout) data.Frame {
	return data.Frame{
		Text:         text,
		X:            0,
		Y:            0,
		Font:         data.FontLarge,
		Area:         &data.Area{X0: 0, Y0: 0, X1: layout.Width, Y1: layout.Height},
		Effect:       data.EffectScrollRTL,
		EffectCycles: 0,
		EffectTime:   0,
		EffectSpeed:  layout.ScrollSpeed,
	}
}

func upperFrame(text string) data.Frame {
	return data.Frame{Text: text, X: 0, Y: 7, Font: data.FontLabel}
}

func lowerFrame(text string, layout Layout) data.Frame {
	return data.Frame{Text: text, X: 0, Y: 15, Font: data.FontSmall, Duration: layout.CycleTime}
}

// SensorLine formats the ambient summary. CO2 is rounded to whole ppm;
// every other reading is shown exactly as reported.
func SensorLine(s data.SensorSnapshot) (string, error) {
	co2, err := s.Float(data.MetricCO2)
	if err != nil {
		return "", fmt.Errorf("co2: %w", err)
	}
	return fmt.Sprintf("%sC %srH %.0fppm %sug/m3 %sVOC", s.Temperature, s.Humidity, co2, s.PM25, s.VOC), nil
}

// AgeSeconds rounds an age to whole seconds, half away from zero.
func AgeSeconds(age time.Duration) int64 {
	return int64(math.Round(age.Seconds()))
}

// AgeLabel describes age in whole hours from one hour up, whole minutes
// below that. Remainders are discarded.
func AgeLabel(age time.Duration) string {
	s := AgeSeconds(age)
	if s >= 3600 {
		return plural(s/3600, "hour")
	}
	return plural(s/60, "minute")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s ago", n, unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
