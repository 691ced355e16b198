// Package clock abstracts waiting so control loops can run against real time
// in production and against a recording fake in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the time source and the suspension points used by the
// control tasks.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, whichever comes first. It
	// returns ctx.Err() when cancelled. A non-positive d only checks ctx.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// Real returns a Clock backed by the runtime timer.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake is a Clock that never blocks. Each Sleep advances the fake time and
// is recorded for inspection.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	hook   func(d time.Duration)
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// OnSleep registers fn to run inside every Sleep, after time has advanced.
func (f *Fake) OnSleep(fn func(d time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = fn
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
	f.sleeps = append(f.sleeps, d)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	return ctx.Err()
}

// Sleeps returns a copy of every duration passed to Sleep so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
