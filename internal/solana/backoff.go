package solana

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default backoff values.
const (
	DefaultBackoffBase   = 800 * time.Millisecond
	DefaultBackoffMult   = 1.8
	DefaultBackoffCap    = 12 * time.Second
	DefaultBackoffJitter = 1 * time.Second

	// rateLimitFactor amplifies the base wait after an HTTP 429.
	rateLimitFactor = 2
)

// Backoff computes waits between attempts:
// min(Base * Multiplier^(attempt-1) + jitter, Cap).
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
	// Jitter is the upper bound of the uniformly random extra wait.
	Jitter time.Duration
}

// DefaultBackoff returns the default smart backoff.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       DefaultBackoffBase,
		Multiplier: DefaultBackoffMult,
		Cap:        DefaultBackoffCap,
		Jitter:     DefaultBackoffJitter,
	}
}

// Delay returns the wait after failed attempt number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	wait := float64(b.Base) * math.Pow(mult, float64(attempt-1))
	if b.Jitter > 0 {
		wait += rand.Float64() * float64(b.Jitter)
	}
	if b.Cap > 0 && wait > float64(b.Cap) {
		wait = float64(b.Cap)
	}
	return time.Duration(wait)
}

// amplified returns the backoff used after a rate-limit response.
func (b Backoff) amplified() Backoff {
	b.Base *= rateLimitFactor
	return b
}
