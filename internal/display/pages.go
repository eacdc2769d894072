package display

import (
	"time"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// Page is one step of a cycle: every frame shown at the same time.
type Page struct {
	Frames   []data.Frame
	Duration time.Duration // zero holds the page until the cycle restarts
}

// Pages splits a frame sequence into cycle steps. A frame with a cycle
// duration closes the current step. Frames before the first such frame
// carry no duration of their own and stay visible on every step unless a
// later frame occupies the same position.
func Pages(frames []data.Frame) []Page {
	var (
		pages    []Page
		sticky   []data.Frame
		current  []data.Frame
		seenStep bool
	)
	for _, f := range frames {
		current = append(current, f)
		if f.Duration <= 0 {
			continue
		}
		if !seenStep {
			// Everything before the first timed frame except that frame itself
			// persists as background.
			sticky = append(sticky, current[:len(current)-1]...)
			seenStep = true
			pages = append(pages, Page{Frames: current, Duration: f.Duration})
		} else {
			pages = append(pages, Page{Frames: overlay(sticky, current), Duration: f.Duration})
		}
		current = nil
	}
	if len(current) > 0 {
		if seenStep {
			current = overlay(sticky, current)
		}
		pages = append(pages, Page{Frames: current})
	}
	return pages
}

// overlay returns background frames not covered by a foreground frame at the
// same position, followed by the foreground frames.
func overlay(background, foreground []data.Frame) []data.Frame {
	out := make([]data.Frame, 0, len(background)+len(foreground))
	for _, b := range background {
		covered := false
		for _, f := range foreground {
			if f.X == b.X && f.Y == b.Y {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, b)
		}
	}
	return append(out, foreground...)
}
