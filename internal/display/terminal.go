package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
)

// Terminal draws the sign content as a bordered box, one box per dispatch.
// Upper and lower line frames of each cycle step are shown side by side.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	width int // in characters
	box   lipgloss.Style
	dim   lipgloss.Style
}

func NewTerminal(out io.Writer, width int) *Terminal {
	return &Terminal{
		out:   out,
		width: width,
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("214")).
			Width(width),
		dim: lipgloss.NewStyle().Faint(true),
	}
}

func (t *Terminal) SendStatic(_ context.Context, text string) error {
	return t.write(t.box.Render(text))
}

func (t *Terminal) SendFrames(_ context.Context, frames []data.Frame, useEffects bool) error {
	var steps []string
	for _, page := range Pages(frames) {
		lines := make([]string, 0, len(page.Frames))
		for _, f := range page.Frames {
			text := f.Text
			if useEffects && f.Effect == data.EffectScrollRTL {
				text = "<< " + text + " <<"
			}
			lines = append(lines, text)
		}
		step := t.box.Render(strings.Join(lines, "\n"))
		if page.Duration > 0 {
			step = lipgloss.JoinVertical(lipgloss.Left, step, t.dim.Render(fmt.Sprintf("  %s", page.Duration)))
		}
		steps = append(steps, step)
	}
	return t.write(lipgloss.JoinHorizontal(lipgloss.Top, steps...))
}

func (t *Terminal) write(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, s)
	return err
}
