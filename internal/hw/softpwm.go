package hw

import (
	"context"
	"sync/atomic"
	"time"
)

// softPWM bit-bangs a percent duty cycle onto an output pin with a fixed
// period.
type softPWM struct {
	out    *outputPin
	period time.Duration
	duty   atomic.Int32
	done   chan struct{}
}

func newSoftPWM(out *outputPin, period time.Duration) *softPWM {
	return &softPWM{out: out, period: period, done: make(chan struct{})}
}

func (p *softPWM) Set(percent int) {
	p.duty.Store(int32(percent))
}

func (p *softPWM) Duty() int {
	return int(p.duty.Load())
}

// run drives the pin until ctx is done, then leaves it low.
func (p *softPWM) run(ctx context.Context) {
	defer close(p.done)
	defer p.out.Set(false) //nolint:errcheck

	for {
		duty := p.duty.Load()
		on := p.period * time.Duration(duty) / 100

		switch {
		case duty <= 0:
			_ = p.out.Set(false)
			if !wait(ctx, p.period) {
				return
			}
		case duty >= 100:
			_ = p.out.Set(true)
			if !wait(ctx, p.period) {
				return
			}
		default:
			_ = p.out.Set(true)
			if !wait(ctx, on) {
				return
			}
			_ = p.out.Set(false)
			if !wait(ctx, p.period-on) {
				return
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
