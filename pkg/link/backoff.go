package link

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential growth from Base by
// Factor, capped at Max, with a random jitter spread so a fleet of
// services does not redial in lockstep.
type Backoff struct {
	// Base is the delay before the first retry. Default 500ms.
	Base time.Duration

	// Factor multiplies the delay after each consecutive failure.
	// Default 2.
	Factor float64

	// Max caps the delay. Default 10s.
	Max time.Duration

	// Jitter is the fraction of random spread applied to each delay
	// (0.2 means +/-20%). Default 0.2; negative disables jitter.
	Jitter float64
}

func (b *Backoff) setDefaults() {
	if b.Base <= 0 {
		b.Base = 500 * time.Millisecond
	}
	if b.Factor <= 0 {
		b.Factor = 2
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Jitter == 0 {
		b.Jitter = 0.2
	}
}

// Next returns the delay before retry attempt n (0-based). Ignoring
// jitter, delays are non-decreasing in n up to Max.
func (b Backoff) Next(attempt int) time.Duration {
	b.setDefaults()

	d := float64(b.Base)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			break
		}
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		spread := d * b.Jitter
		d += (rand.Float64()*2 - 1) * spread
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}
