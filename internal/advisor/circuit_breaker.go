package advisor

import (
	"sync"
	"time"
)

// CircuitState is the breaker's three-state machine.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half_open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker gates calls to the advisor adapter: trips open after a
// run of consecutive failures, probes a limited number of half-open
// requests after a cooldown, and closes again once those probes
// succeed. The trip signal is a consecutive-failure count rather than
// queue depth or worker saturation, since the advisor is a single
// external dependency, not a worker pool.
type CircuitBreaker struct {
	mu sync.Mutex

	state CircuitState

	failureThreshold int
	cooldown         time.Duration
	halfOpenProbes   int

	consecutiveFailures int
	openedAt            time.Time
	probesIssued        int
	probeSuccesses      int
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and waits cooldown before probing again.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		halfOpenProbes:   3,
	}
}

// Allow reports whether a call may proceed now, transitioning Open to
// HalfOpen once the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probesIssued = 0
		cb.probeSuccesses = 0
	}

	if cb.state == CircuitHalfOpen {
		if cb.probesIssued >= cb.halfOpenProbes {
			return false
		}
		cb.probesIssued++
		return true
	}

	return true
}

// RecordSuccess notifies the breaker a call succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state != CircuitHalfOpen {
		return
	}
	cb.probeSuccesses++
	if cb.probeSuccesses >= cb.halfOpenProbes {
		cb.state = CircuitClosed
	}
}

// RecordFailure notifies the breaker a call failed, tripping the
// breaker open once consecutiveFailures reaches the threshold, or
// immediately re-opening from half-open on a single probe failure.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		return
	}

	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
	}
}

// State returns the current state for metrics/inspection.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
