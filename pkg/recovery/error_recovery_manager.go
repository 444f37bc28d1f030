package recovery

import (
	"time"
)

// ErrorRecoveryManager tracks a run of consecutive Modbus errors on the
// serial link and decides when the grace period has elapsed and the bridge
// should be reported offline — the logic health.Monitor drives for A4, and
// that CircuitBreakerTransport's per-slave breakers mirror for fast-fail.
type ErrorRecoveryManager struct {
	consecutiveErrors  int
	firstErrorTime     time.Time
	errorGracePeriod   time.Duration
	statusSetToOffline bool
}

// NewErrorRecoveryManager creates a manager with the given grace period
// (time a run of consecutive link errors is tolerated before reporting
// offline). A zero period defaults to 15s.
func NewErrorRecoveryManager(gracePeriod time.Duration) *ErrorRecoveryManager {
	if gracePeriod == 0 {
		gracePeriod = 15 * time.Second
	}
	return &ErrorRecoveryManager{errorGracePeriod: gracePeriod}
}

// RecordError records a link error and reports whether the grace period
// (measured from the first error in the current run) has expired.
func (m *ErrorRecoveryManager) RecordError() bool {
	m.consecutiveErrors++
	if m.firstErrorTime.IsZero() {
		m.firstErrorTime = time.Now()
	}
	return time.Since(m.firstErrorTime) >= m.errorGracePeriod
}

// RecordSuccess resets the error run after a successful Modbus operation.
func (m *ErrorRecoveryManager) RecordSuccess() {
	m.consecutiveErrors = 0
	m.firstErrorTime = time.Time{}
	m.statusSetToOffline = false
}

// ShouldMarkOffline reports whether the link should now be reported
// offline: the grace period has expired and this isn't a repeat report.
func (m *ErrorRecoveryManager) ShouldMarkOffline() bool {
	if m.statusSetToOffline {
		return false
	}
	return !m.firstErrorTime.IsZero() && time.Since(m.firstErrorTime) >= m.errorGracePeriod
}

// MarkAsOffline records that the offline status has already been reported,
// so ShouldMarkOffline doesn't fire again for the same error run.
func (m *ErrorRecoveryManager) MarkAsOffline() {
	m.statusSetToOffline = true
}
