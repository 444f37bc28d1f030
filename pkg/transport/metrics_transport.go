package transport

import (
	"time"

	"mbbridge/pkg/health"
	"mbbridge/pkg/metrics"
)

// MetricsTransport wraps a Transport, feeding every read outcome into the
// ambient A4 metrics collector and bridge-wide health monitor. It sits
// outermost in the decorator chain (RTUTransport -> CircuitBreakerTransport
// -> MetricsTransport) so every read the engine issues, retried or not, is
// observed exactly once per attempt.
type MetricsTransport struct {
	inner   Transport
	metrics metrics.MetricsCollector
	health  *health.Monitor
}

// NewMetricsTransport wraps inner with metrics/health observation.
func NewMetricsTransport(inner Transport, m metrics.MetricsCollector, h *health.Monitor) *MetricsTransport {
	return &MetricsTransport{inner: inner, metrics: m, health: h}
}

func (m *MetricsTransport) observe(start time.Time, err error) {
	if err != nil {
		m.metrics.IncrementModbusErrors()
		m.health.RecordError()
	} else {
		m.metrics.IncrementModbusReads()
		m.metrics.ObserveModbusReadDuration(time.Since(start))
		m.health.RecordSuccess()
	}
	m.metrics.SetLinkStatus(m.health.IsOnline())
}

func (m *MetricsTransport) ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error) {
	start := time.Now()
	out, err := m.inner.ReadCoils(slaveID, address, quantity)
	m.observe(start, err)
	return out, err
}

func (m *MetricsTransport) ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error) {
	start := time.Now()
	out, err := m.inner.ReadDiscreteInputs(slaveID, address, quantity)
	m.observe(start, err)
	return out, err
}

func (m *MetricsTransport) ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	start := time.Now()
	out, err := m.inner.ReadInputRegisters(slaveID, address, quantity)
	m.observe(start, err)
	return out, err
}

func (m *MetricsTransport) ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	start := time.Now()
	out, err := m.inner.ReadHoldingRegisters(slaveID, address, quantity)
	m.observe(start, err)
	return out, err
}

func (m *MetricsTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error {
	return m.inner.WriteSingleRegister(slaveID, address, value)
}

func (m *MetricsTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error {
	return m.inner.WriteSingleCoil(slaveID, address, on)
}

func (m *MetricsTransport) Close() error {
	return m.inner.Close()
}
