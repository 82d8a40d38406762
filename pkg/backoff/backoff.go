package backoff

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultBase is the exponent base for the retry delay curve, in seconds.
	DefaultBase = 2.0

	// DefaultMaxBackoff caps the retry delay, in seconds.
	DefaultMaxBackoff = 20.0
)

// Rand01 samples a uniform value in [0, 1).
type Rand01 func() float64

// RandRange samples a uniform value in [lo, hi).
type RandRange func(lo, hi float64) float64

// Delay computes a full-jitter exponential backoff delay in seconds for
// the given attempt (1-based).
//
// For small attempt counts the delay is min(max, rand01()*base^(attempt-1)).
// Once the attempt count is large enough that the exponential term is
// guaranteed to dominate max by at least a squared margin, the power is not
// computed at all (base^attempt overflows float64 around attempt ~1024 for
// base 2) and the delay is sampled near the cap instead, in
// [0.8*max, max).
func Delay(attempt int, base, max float64, rand01 Rand01, randRange RandRange) float64 {
	// attempt-1 <= 2*log_base(max) keeps base^(attempt-1) within max^2,
	// safely inside float64 range for any sane cap.
	threshold := 2 * (math.Log(max) / math.Log(base))
	if float64(attempt-1) <= threshold {
		return math.Min(max, rand01()*math.Pow(base, float64(attempt-1)))
	}
	return randRange(0.8*max, max)
}

// Policy is a Delay closed over its random sources and constants, ready to
// hand to a retry loop.
type Policy struct {
	Base float64
	Max  float64

	rand01    Rand01
	randRange RandRange
}

// Full returns a full-jitter policy with the default curve, seeded from a
// private rand source so independent policies do not contend.
func Full() *Policy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Policy{
		Base:   DefaultBase,
		Max:    DefaultMaxBackoff,
		rand01: rng.Float64,
		randRange: func(lo, hi float64) float64 {
			return lo + rng.Float64()*(hi-lo)
		},
	}
}

// Delay returns the backoff for the given attempt as a time.Duration.
func (p *Policy) Delay(attempt int) time.Duration {
	secs := Delay(attempt, p.Base, p.Max, p.rand01, p.randRange)
	return time.Duration(secs * float64(time.Second))
}
