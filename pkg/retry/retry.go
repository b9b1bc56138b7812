// Package retry implements the exponential-backoff retry policy and the
// per-adapter circuit breaker described in spec §4.2. The backoff formula
// mirrors pkg/client/openai_compat.go's retryDelay/addJitter in the
// teacher repo; the circuit breaker has no direct teacher analog and is
// written fresh, modeled on the original implementation's
// utils/retry.py::CircuitBreaker three-state machine.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/nyxforge/concord/pkg/coreerr"
	"github.com/nyxforge/concord/pkg/log"
	"github.com/nyxforge/concord/pkg/metrics"
)

// Config configures a retry policy.
type Config struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	ExponentialBase  float64
	Jitter           bool
	RateLimitMaxWait time.Duration
}

// DefaultConfig returns the spec's default retry budget.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		BaseDelay:        time.Second,
		MaxDelay:         30 * time.Second,
		ExponentialBase:  2.0,
		Jitter:           true,
		RateLimitMaxWait: 30 * time.Second,
	}
}

// delayForAttempt computes the backoff delay before attempt n (0-indexed),
// per spec §4.2: min(maxDelay, baseDelay * exponentialBase^n), plus
// uniform jitter in [0, 0.25*delay) when enabled.
func delayForAttempt(n int, cfg Config) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(n))
	if max := float64(cfg.MaxDelay); delay > max {
		delay = max
	}
	if cfg.Jitter && delay > 0 {
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}

// rateLimitDelay computes the separate schedule for rate-limit errors:
// min(30s, baseDelay * 3^n).
func rateLimitDelay(n int, cfg Config) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(3.0, float64(n))
	if max := float64(cfg.RateLimitMaxWait); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// Op is an operation subject to retry.
type Op func(ctx context.Context, attempt int) error

// Do executes op up to cfg.MaxRetries+1 times, backing off between
// attempts. Only kinds whose Kind.Retriable() is true are retried, with
// rate-limit errors using the separate rate-limit schedule. Non-retriable
// errors are returned immediately.
func Do(ctx context.Context, adapterName string, cfg Config, op Op) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := coreerr.KindOf(err)
		if !kind.Retriable() {
			return err
		}

		if attempt == cfg.MaxRetries {
			log.WithFields(map[string]interface{}{
				"adapter": adapterName,
				"attempt": attempt + 1,
				"kind":    kind.String(),
			}).WithError(err).Error("retries exhausted")
			return err
		}

		var delay time.Duration
		if kind == coreerr.KindRateLimit {
			delay = rateLimitDelay(attempt, cfg)
		} else {
			delay = delayForAttempt(attempt, cfg)
		}

		log.WithFields(map[string]interface{}{
			"adapter": adapterName,
			"attempt": attempt + 1,
			"kind":    kind.String(),
			"delay":   delay.String(),
		}).WithError(err).Warn("retrying after failure")

		metrics.RecordRetryAttempt(adapterName)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// State is one of the three circuit-breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is a per-adapter circuit breaker. It does no locking of its
// own, so its methods are not safe for concurrent use; callers share one
// instance per adapter identity and call through CanExecute/RecordSuccess
// /RecordFailure around each call.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenRequests int

	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenCount   int

	now func() time.Time
}

// NewBreaker constructs a circuit breaker in the CLOSED state. name
// labels the breaker's circuit-breaker-transition metrics.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, halfOpenRequests int) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if halfOpenRequests < 1 {
		halfOpenRequests = 1
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenRequests: halfOpenRequests,
		state:            Closed,
		now:              time.Now,
	}
}

// State reports the breaker's current state, transitioning OPEN→HALF_OPEN
// as a side effect if the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.maybeRecover()
	return b.state
}

func (b *Breaker) maybeRecover() {
	if b.state != Open {
		return
	}
	if b.lastFailureTime.IsZero() {
		return
	}
	if b.now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
		b.state = HalfOpen
		b.halfOpenCount = 0
		log.WithField("state", "half_open").Info("circuit breaker entering half-open state")
		metrics.RecordCircuitBreakerTransition(b.name, "half_open")
	}
}

// CanExecute reports whether a call may proceed right now, admitting at
// most halfOpenRequests probes while HALF_OPEN.
func (b *Breaker) CanExecute() bool {
	b.maybeRecover()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenCount < b.halfOpenRequests {
			b.halfOpenCount++
			return true
		}
		return false
	default: // Open
		return false
	}
}

// RecordSuccess resets the failure counter, closing the circuit if it was
// HALF_OPEN.
func (b *Breaker) RecordSuccess() {
	if b.state == HalfOpen {
		b.state = Closed
		log.Info("circuit breaker closed after successful recovery")
		metrics.RecordCircuitBreakerTransition(b.name, "closed")
	}
	b.failureCount = 0
}

// RecordFailure records a failed call, opening the circuit once the
// failure threshold is reached (or immediately, from HALF_OPEN).
func (b *Breaker) RecordFailure() {
	b.lastFailureTime = b.now()

	if b.state == HalfOpen {
		b.state = Open
		log.Warn("circuit breaker reopened after half-open probe failure")
		metrics.RecordCircuitBreakerTransition(b.name, "open")
		return
	}

	b.failureCount++
	if b.failureCount >= b.failureThreshold {
		b.state = Open
		log.WithField("failures", b.failureCount).Warn("circuit breaker opened")
		metrics.RecordCircuitBreakerTransition(b.name, "open")
	}
}

// Execute runs op under circuit-breaker protection, returning a
// CircuitOpen CoreError without invoking op if the breaker rejects the
// call.
func (b *Breaker) Execute(adapterName string, op func() error) error {
	if !b.CanExecute() {
		return coreerr.New(coreerr.KindCircuitOpen, adapterName, nil)
	}

	if err := op(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
