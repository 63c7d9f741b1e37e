package session

import "time"

// backoff computes capped exponential reconnect delays. Delays are consumed
// as explicit deadlines checked each tick, never as sleeping goroutines.
type backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{
		base: base,
		max:  max,
	}
}

// next returns the delay to wait before the next attempt and advances the
// attempt counter.
func (b *backoff) next() time.Duration {
	d := b.base
	for i := 0; i < b.attempt; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	b.attempt++
	return d
}

func (b *backoff) reset() {
	b.attempt = 0
}
