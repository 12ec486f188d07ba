package resilience

import (
	"sync"
	"time"

	"github.com/apichain/apichain/pkg/models"
)

// BreakerState is the circuit breaker's current position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker is the Closed/Open/HalfOpen state machine wrapped around a
// stage's whole retry loop: one retry-loop outcome is one breaker event.
//
// Closed: calls pass through; consecutive failures are counted and reaching
// FailureThreshold opens the breaker. Open: calls are rejected until BreakMs
// has elapsed, then the next call transitions to HalfOpen as a trial.
// HalfOpen: a trial failure reopens immediately; CloseOnSuccessAttempts
// consecutive trial successes close the breaker again.
type CircuitBreaker struct {
	mu        sync.Mutex
	policy    models.CircuitBreakerPolicy
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker for the given policy.
func NewCircuitBreaker(policy models.CircuitBreakerPolicy) *CircuitBreaker {
	return &CircuitBreaker{policy: policy, now: time.Now}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Allow reports whether a call may proceed. While Open it rejects until the
// cooldown elapses (returning the remaining wait), then admits the next call
// as a HalfOpen trial.
func (cb *CircuitBreaker) Allow() (bool, time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true, 0
	}

	elapsed := cb.now().Sub(cb.openedAt)
	if elapsed < cb.policy.Break() {
		return false, cb.policy.Break() - elapsed
	}

	cb.state = StateHalfOpen
	cb.successes = 0

	return true, 0
}

// RecordSuccess feeds a successful outcome into the state machine. A
// canceled call must not be recorded at all, so an incomplete trial leaves
// the breaker state unchanged.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.policy.CloseOnSuccessAttempts {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateOpen:
		// No call should complete while open; ignore.
	}
}

// RecordFailure feeds a failed outcome into the state machine.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.policy.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.successes = 0
	case StateOpen:
	}
}
