package link

import (
	"testing"
	"time"
)

func TestBackoffNonDecreasing(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Factor: 2, Max: 10 * time.Second, Jitter: -1}

	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		d := b.Next(attempt)
		if d < prev {
			t.Errorf("Next(%d) = %v, decreased from %v", attempt, d, prev)
		}
		if d > b.Max {
			t.Errorf("Next(%d) = %v, exceeds cap %v", attempt, d, b.Max)
		}
		prev = d
	}

	if got := b.Next(0); got != 500*time.Millisecond {
		t.Errorf("Next(0) = %v, want 500ms", got)
	}
	if got := b.Next(1); got != time.Second {
		t.Errorf("Next(1) = %v, want 1s", got)
	}
	if got := b.Next(20); got != 10*time.Second {
		t.Errorf("Next(20) = %v, want cap 10s", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Max: 10 * time.Second, Jitter: 0.2}

	for i := 0; i < 200; i++ {
		d := b.Next(0)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jittered delay %v outside [800ms, 1200ms]", d)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	var b Backoff
	d := b.Next(0)
	if d < 400*time.Millisecond || d > 600*time.Millisecond {
		t.Errorf("default Next(0) = %v, want 500ms +/-20%%", d)
	}

	far := b.Next(30)
	if far > 12*time.Second {
		t.Errorf("default Next(30) = %v, want near 10s cap", far)
	}
}
