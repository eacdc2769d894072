// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// internal/clock/clock.go

// Package clock lets time-dependent components take their notion of "now"
// and their tickers as a dependency. Production code uses Real; tests use
// Fake and move time forward explicitly with Advance.
package clock

import "time"

// Clock is the subset of the time package used by the sign controller.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker mirrors time.Ticker so fake and real tickers share a type.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks are delivered after Stop returns.
func (t *Ticker) Stop() { t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stopFunc: ticker.Stop}
}
