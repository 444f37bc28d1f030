package recovery

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - normal operation, requests pass through
	StateClosed CircuitState = iota
	// StateOpen - failing, requests blocked immediately
	StateOpen
	// StateHalfOpen - testing recovery, limited requests allowed
	StateHalfOpen
)

// String returns the string representation of the circuit state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker fast-fails Modbus requests to one slave once it has proven
// consistently unreachable, instead of paying its full response timeout on
// every scheduler tick. CircuitBreakerTransport keeps one of these per
// slave ID, since one dead device on a half-duplex RTU bus must not slow
// down polling of the others.
type CircuitBreaker struct {
	// Configuration
	slaveID          uint8
	maxFailures      int           // Number of failures before opening circuit
	timeout          time.Duration // Time to wait before attempting recovery (half-open)
	halfOpenMaxTries int           // Number of test requests allowed in half-open state

	// State
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenAttempts int

	// Thread safety
	mu sync.RWMutex
}

// CircuitBreakerConfig holds configuration for a slave's circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures      int           // Default: 5
	Timeout          time.Duration // Default: 30 seconds
	HalfOpenMaxTries int           // Default: 3
}

// NewCircuitBreaker creates a circuit breaker for one slave with the given
// configuration.
func NewCircuitBreaker(slaveID uint8, config CircuitBreakerConfig) *CircuitBreaker {
	// Set defaults if not specified
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxTries == 0 {
		config.HalfOpenMaxTries = 3
	}

	return &CircuitBreaker{
		slaveID:          slaveID,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxTries: config.HalfOpenMaxTries,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// SlaveID returns the slave this breaker is tracking.
func (cb *CircuitBreaker) SlaveID() uint8 {
	return cb.slaveID
}

// Call executes the given function if the circuit allows it
// Returns error if circuit is open or if the function fails
func (cb *CircuitBreaker) Call(fn func() error) error {
	// Check if we can proceed
	if err := cb.beforeCall(); err != nil {
		return err
	}

	// Execute the function
	err := fn()

	// Record the result
	cb.afterCall(err)

	return err
}

// beforeCall checks if the call should be allowed
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		// Normal operation - allow call
		return nil

	case StateOpen:
		// Check if timeout has elapsed
		if time.Since(cb.lastFailureTime) > cb.timeout {
			// Transition to half-open state
			cb.state = StateHalfOpen
			cb.halfOpenAttempts = 0
			cb.lastStateChange = time.Now()
			return nil
		}
		// Circuit is open - reject call
		return fmt.Errorf("slave %d circuit breaker is OPEN (failed %d times, waiting %.0fs)",
			cb.slaveID, cb.failures, time.Until(cb.lastFailureTime.Add(cb.timeout)).Seconds())

	case StateHalfOpen:
		// Allow limited number of test requests
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			return fmt.Errorf("slave %d circuit breaker is HALF-OPEN (max test attempts reached)", cb.slaveID)
		}
		cb.halfOpenAttempts++
		return nil

	default:
		return fmt.Errorf("slave %d circuit breaker in unknown state", cb.slaveID)
	}
}

// afterCall records the result of the call
func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

// onFailure handles a failed call
func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		// Check if we should open the circuit
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			cb.lastStateChange = time.Now()
		}

	case StateHalfOpen:
		// Failed during testing - reopen circuit
		cb.state = StateOpen
		cb.halfOpenAttempts = 0
		cb.lastStateChange = time.Now()
	}
}

// onSuccess handles a successful call
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		// Reset failure counter on success
		cb.failures = 0

	case StateHalfOpen:
		// Check if we've had enough successful tests
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			// Recovery confirmed - close circuit
			cb.state = StateClosed
			cb.failures = 0
			cb.halfOpenAttempts = 0
			cb.lastStateChange = time.Now()
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns a snapshot of this slave's circuit breaker for logging.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		SlaveID:  cb.slaveID,
		State:    cb.state,
		Failures: cb.failures,
	}
}

// CircuitBreakerStats holds a point-in-time snapshot of one slave's
// circuit breaker, for the state-transition log line in
// CircuitBreakerTransport.
type CircuitBreakerStats struct {
	SlaveID  uint8
	State    CircuitState
	Failures int
}
