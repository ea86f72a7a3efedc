package license

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delayer holds an activation response for some interval before it is
// returned. Applying the same delay distribution to every branch of the state
// machine removes response latency as a side channel for key enumeration.
type Delayer interface {
	Wait(ctx context.Context)
}

// JitterDelayer sleeps a uniformly random duration in [Min, Max]. The wait is
// cut short if the caller's context is cancelled.
type JitterDelayer struct {
	Min time.Duration
	Max time.Duration
}

// NewJitterDelayer returns the production delayer with the default
// anti-enumeration window of 100-300ms.
func NewJitterDelayer() *JitterDelayer {
	return &JitterDelayer{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond}
}

func (d *JitterDelayer) Wait(ctx context.Context) {
	delay := d.Min
	if d.Max > d.Min {
		delay += rand.N(d.Max - d.Min)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// NopDelayer waits for nothing. Tests use it so the suite never sleeps
// real wall-clock time.
type NopDelayer struct{}

func (NopDelayer) Wait(context.Context) {}
