// internal/mobitec/sign.go
package mobitec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.bug.st/serial"

	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/clock"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/data"
	"github.com/CatoLynx/HAss-Mobitec-Notify/internal/display"
)

const (
	defaultBaud      = 4800
	defaultCharWidth = 6
	scrollStep       = 100 * time.Millisecond
)

// Config describes the serial link and sign geometry.
type Config struct {
	Port      string `mapstructure:"port"`
	Address   int    `mapstructure:"address"`
	Baud      int    `mapstructure:"baud"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	CharWidth int    `mapstructure:"char_width"` // average glyph width used to size scrolls
}

// Sign is a display.Driver for a Mobitec sign. Only static text telegrams
// are sent on the wire; cycling and scrolling are played in software by
// the Run goroutine, which owns the port exclusively.
type Sign struct {
	port     io.Writer
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	programs chan program
}

type program struct {
	frames  []data.Frame
	effects bool
	done    chan error // receives the result of the first telegram
}

var _ display.Driver = (*Sign)(nil)

// Open opens the serial port at 8N1 and returns a Sign writing to it.
func Open(cfg Config, clk clock.Clock, logger *slog.Logger) (*Sign, io.Closer, error) {
	if cfg.Baud == 0 {
		cfg.Baud = defaultBaud
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}
	logger.Info("opened sign serial port", "port", cfg.Port, "baud", cfg.Baud, "address", cfg.Address)
	return NewSign(port, cfg, clk, logger), port, nil
}

// NewSign returns a Sign writing telegrams to w.
func NewSign(w io.Writer, cfg Config, clk clock.Clock, logger *slog.Logger) *Sign {
	if cfg.CharWidth <= 0 {
		cfg.CharWidth = defaultCharWidth
	}
	return &Sign{
		port:     w,
		cfg:      cfg,
		clock:    clk,
		logger:   logger,
		programs: make(chan program, 1),
	}
}

func (s *Sign) SendStatic(ctx context.Context, text string) error {
	var frames []data.Frame
	if text != "" {
		frames = []data.Frame{{Text: text, Y: s.cfg.Height - 1, Font: data.FontSmall}}
	}
	return s.submit(ctx, program{frames: frames})
}

func (s *Sign) SendFrames(ctx context.Context, frames []data.Frame, useEffects bool) error {
	return s.submit(ctx, program{frames: frames, effects: useEffects})
}

// submit replaces the running program and waits until its first telegram
// has been written.
func (s *Sign) submit(ctx context.Context, p program) error {
	p.done = make(chan error, 1)

	// Drop a program the player has not picked up yet; it is stale now.
	select {
	case <-s.programs:
	default:
	}
	select {
	case s.programs <- p:
	case <-ctx.Done():
		return fmt.Errorf("queueing telegram: %w", ctx.Err())
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("writing telegram: %w", ctx.Err())
	}
}

// Run plays programs until ctx is cancelled.
func (s *Sign) Run(ctx context.Context) error {
	var current *program
	for {
		if current == nil {
			select {
			case <-ctx.Done():
				return nil
			case p := <-s.programs:
				current = &p
			}
		}
		next, ok := s.play(ctx, *current)
		if !ok {
			return nil
		}
		current = next
	}
}

// play shows p until another program arrives, which it returns. ok is false
// once ctx is done.
func (s *Sign) play(ctx context.Context, p program) (next *program, ok bool) {
	first := true
	write := func(blocks []TextBlock) {
		_, err := s.port.Write(EncodeText(byte(s.cfg.Address), s.cfg.Width, s.cfg.Height, blocks))
		if first {
			p.done <- err
			first = false
		} else if err != nil {
			s.logger.Error("writing telegram", "error", err)
		}
	}
	wait := func(d time.Duration) (*program, bool, bool) {
		var timeout <-chan time.Time
		if d > 0 {
			timeout = s.clock.After(d)
		}
		select {
		case <-ctx.Done():
			return nil, false, false
		case np := <-s.programs:
			return &np, true, false
		case <-timeout:
			return nil, true, true
		}
	}

	if p.effects && len(p.frames) == 1 && p.frames[0].Effect == data.EffectScrollRTL {
		return s.scroll(p.frames[0], write, wait)
	}

	pages := display.Pages(p.frames)
	if len(pages) == 0 {
		write(nil)
		np, alive, _ := wait(0)
		return np, alive
	}
	for i := 0; ; i = (i + 1) % len(pages) {
		write(blocksFor(pages[i].Frames))

		hold := pages[i].Duration
		if hold == 0 && len(pages) > 1 {
			// The last page has no duration of its own; keep the rhythm of
			// the page before it.
			hold = pages[(i+len(pages)-1)%len(pages)].Duration
		}
		np, alive, timedOut := wait(hold)
		if !timedOut {
			return np, alive
		}
	}
}

func (s *Sign) scroll(f data.Frame, write func([]TextBlock), wait func(time.Duration) (*program, bool, bool)) (*program, bool) {
	speed := f.EffectSpeed
	if speed <= 0 {
		speed = 60
	}
	step := speed / int(time.Second/scrollStep)
	if step < 1 {
		step = 1
	}
	width := s.cfg.Width
	if f.Area != nil {
		width = f.Area.X1 - f.Area.X0
	}
	f.Text = Transliterate(f.Text)
	textWidth := utf8.RuneCountInString(f.Text) * s.cfg.CharWidth

	offset := width
	cycles := 0
	for {
		write([]TextBlock{ScrollBlock(f, offset, s.cfg.CharWidth)})

		offset -= step
		hold := scrollStep
		if offset < -textWidth {
			offset = width
			cycles++
			if f.EffectCycles > 0 && cycles >= f.EffectCycles {
				hold = 0
			}
		}
		np, alive, timedOut := wait(hold)
		if !timedOut {
			return np, alive
		}
	}
}

// ScrollBlock positions text at a horizontal offset. Telegram positions
// cannot be negative, so characters that moved past the left edge are
// dropped instead.
func ScrollBlock(f data.Frame, offset, charWidth int) TextBlock {
	text := []rune(f.Text)
	x := offset
	if x < 0 {
		skip := (-x + charWidth - 1) / charWidth
		if skip > len(text) {
			skip = len(text)
		}
		text = text[skip:]
		x += skip * charWidth
	}
	if f.Area != nil {
		x += f.Area.X0
	}
	return TextBlock{X: x, Y: f.Y, Font: f.Font, Text: string(text)}
}

func blocksFor(frames []data.Frame) []TextBlock {
	blocks := make([]TextBlock, len(frames))
	for i, f := range frames {
		blocks[i] = TextBlock{X: f.X, Y: f.Y, Font: f.Font, Text: f.Text}
	}
	return blocks
}
