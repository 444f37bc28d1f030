// Package health wraps the generic error-recovery grace-period logic into
// the bridge-wide liveness snapshot exposed by the /health endpoint (A4).
package health

import (
	"sync"
	"time"

	"mbbridge/pkg/recovery"
)

// Monitor tracks overall bridge health (serial link reachability across
// all slaves) and integrates with the error-recovery grace period so a
// single transient failure doesn't immediately flip the bridge unhealthy.
type Monitor struct {
	isOnline        bool
	lastSuccessTime time.Time
	errorCount      int
	successCount    int
	errorManager    *recovery.ErrorRecoveryManager
	mu              sync.RWMutex
}

// NewMonitor creates a bridge health monitor with the given error grace
// period (time a run of consecutive errors is tolerated before the bridge
// reports unhealthy).
func NewMonitor(gracePeriod time.Duration) *Monitor {
	return &Monitor{
		isOnline:     true,
		errorManager: recovery.NewErrorRecoveryManager(gracePeriod),
	}
}

// RecordSuccess records a successful Modbus operation somewhere on the link.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorManager.RecordSuccess()
	m.isOnline = true
	m.successCount++
	m.lastSuccessTime = time.Now()
}

// RecordError records a Modbus operation failure and marks the bridge
// offline once the grace period has elapsed.
func (m *Monitor) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
	if m.errorManager.RecordError() && m.errorManager.ShouldMarkOffline() {
		m.isOnline = false
		m.errorManager.MarkAsOffline()
	}
}

// IsOnline implements http.HealthChecker.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// GetLastSuccessTime implements http.HealthChecker.
func (m *Monitor) GetLastSuccessTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccessTime
}

// GetErrorCount implements http.HealthChecker.
func (m *Monitor) GetErrorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorCount
}

// GetSuccessCount implements http.HealthChecker.
func (m *Monitor) GetSuccessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successCount
}
