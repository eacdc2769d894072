// Package display defines the rendering primitive the controller dispatches
// to, along with the drivers that do not need sign hardware.
package display

import (
	"context"
	"log/slog"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// Driver renders on a sign. Each call replaces whatever was shown before.
type Driver interface {
	// SendStatic shows a single line of text with default layout; "" blanks
	// the sign.
	SendStatic(ctx context.Context, text string) error
	// SendFrames shows a frame sequence, cycling or animating it according
	// to the frame attributes. useEffects enables frame effects.
	SendFrames(ctx context.Context, frames []data.Frame, useEffects bool) error
}

// Dispatch sends a composition with the primitive its mode calls for.
func Dispatch(ctx context.Context, d Driver, c data.Composition) error {
	if c.Mode == data.ModeBlank {
		return d.SendStatic(ctx, "")
	}
	return d.SendFrames(ctx, c.Frames, c.UseEffects)
}

// LogDriver only logs what it is asked to show.
type LogDriver struct {
	Logger *slog.Logger
}

func (d LogDriver) SendStatic(_ context.Context, text string) error {
	d.Logger.Info("display static", "text", text)
	return nil
}

func (d LogDriver) SendFrames(_ context.Context, frames []data.Frame, useEffects bool) error {
	texts := make([]string, len(frames))
	for i, f := range frames {
		texts[i] = f.Text
	}
	d.Logger.Info("display frames", "count", len(frames), "effects", useEffects, "texts", texts)
	return nil
}

// Multi sends to a primary driver and then to every mirror. Only the
// primary's error is returned; mirror errors are logged.
type Multi struct {
	primary Driver
	mirrors []Driver
	logger  *slog.Logger
}

func NewMulti(logger *slog.Logger, primary Driver, mirrors ...Driver) *Multi {
	return &Multi{primary: primary, mirrors: mirrors, logger: logger}
}

func (m *Multi) SendStatic(ctx context.Context, text string) error {
	err := m.primary.SendStatic(ctx, text)
	for _, mirror := range m.mirrors {
		if merr := mirror.SendStatic(ctx, text); merr != nil {
			m.logger.Warn("mirror display failed", "error", merr)
		}
	}
	return err
}

func (m *Multi) SendFrames(ctx context.Context, frames []data.Frame, useEffects bool) error {
	err := m.primary.SendFrames(ctx, frames, useEffects)
	for _, mirror := range m.mirrors {
		if merr := mirror.SendFrames(ctx, frames, useEffects); merr != nil {
			m.logger.Warn("mirror display failed", "error", merr)
		}
	}
	return err
}
