// Package backoff provides the retry delay strategies used between failed
// delivery attempts. Strategies are stateless and safe for concurrent use.
//
// The dispatcher passes the delivery's retry count as the attempt, so
// attempt 1 is the first retry. Attempts below 1 are treated as 1.
package backoff

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Func adapts a plain function to Strategy.
type Func func(attempt int) time.Duration

// Delay calls f.
func (f Func) Delay(attempt int) time.Duration { return f(attempt) }

// Names accepted by FromName and Config.RetryBackoff.
const (
	NameConstant          = "constant"
	NameLinear            = "linear"
	NameExponential       = "exponential"
	NameExponentialJitter = "exponential_jitter"
)

// Constant waits Interval before every retry.
type Constant struct {
	Interval time.Duration
}

// NewConstant returns a Constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(int) time.Duration { return c.Interval }

// Linear waits Initial × attempt, so the n-th retry of a delivery waits n
// base delays. A positive Max caps the result.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear returns a Linear strategy. maxDelay <= 0 leaves it uncapped.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

func (l *Linear) Delay(attempt int) time.Duration {
	n := time.Duration(clampAttempt(attempt))
	if l.Initial > 0 && n > maxDuration/l.Initial {
		return capAt(maxDuration, l.Max)
	}
	return capAt(l.Initial*n, l.Max)
}

// Exponential doubles the wait on every retry, starting from Initial.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential returns an Exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	return capAt(doubled(e.Initial, attempt), e.Max)
}

// ExponentialWithJitter picks a uniform delay in [0, exponential bound),
// which spreads retries of deliveries that failed together.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter returns an ExponentialWithJitter strategy.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	bound := capAt(doubled(e.Initial, attempt), e.Max)
	if bound <= 0 {
		return 0
	}
	return rand.N(bound) //nolint:gosec // jitter does not need crypto rand
}

// DefaultStrategy is Linear over a one second base with no cap.
func DefaultStrategy() Strategy {
	return NewLinear(time.Second, 0)
}

// FromName builds the strategy called name over base and maxDelay. The
// empty name selects Linear.
func FromName(name string, base, maxDelay time.Duration) (Strategy, error) {
	switch name {
	case "", NameLinear:
		return NewLinear(base, maxDelay), nil
	case NameConstant:
		return NewConstant(base), nil
	case NameExponential:
		return NewExponential(base, maxDelay), nil
	case NameExponentialJitter:
		return NewExponentialWithJitter(base, maxDelay), nil
	}
	return nil, fmt.Errorf("backoff: unknown strategy %q", name)
}

// ── helpers ──

const maxDuration = time.Duration(1<<63 - 1)

func clampAttempt(attempt int) int {
	return max(attempt, 1)
}

// doubled returns initial × 2^(attempt-1), saturating instead of
// overflowing.
func doubled(initial time.Duration, attempt int) time.Duration {
	d := initial
	for range clampAttempt(attempt) - 1 {
		if d > maxDuration/2 {
			return maxDuration
		}
		d *= 2
	}
	return d
}

func capAt(d, ceiling time.Duration) time.Duration {
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}
