package transport

import (
	"sync"

	"mbbridge/pkg/logger"
	"mbbridge/pkg/recovery"
)

// CircuitBreakerTransport wraps a Transport with one circuit breaker per
// slave ID, fast-failing reads and writes to a slave that has proven
// consistently unreachable rather than paying its full response timeout on
// every scheduler tick. Slaves are independent: one dead device on the
// shared half-duplex RTU bus never fast-fails requests to the others.
type CircuitBreakerTransport struct {
	inner  Transport
	config recovery.CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[uint8]*breakerState
}

// breakerState pairs a slave's circuit breaker with the state last logged
// for it, so a transition is logged once rather than polled on a timer.
type breakerState struct {
	cb          *recovery.CircuitBreaker
	loggedState recovery.CircuitState
}

// NewCircuitBreakerTransport wraps inner with a per-slave circuit breaker.
func NewCircuitBreakerTransport(inner Transport, config recovery.CircuitBreakerConfig) *CircuitBreakerTransport {
	return &CircuitBreakerTransport{
		inner:    inner,
		config:   config,
		breakers: make(map[uint8]*breakerState),
	}
}

func (c *CircuitBreakerTransport) breakerFor(slaveID uint8) *breakerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	bs, ok := c.breakers[slaveID]
	if !ok {
		bs = &breakerState{cb: recovery.NewCircuitBreaker(slaveID, c.config), loggedState: recovery.StateClosed}
		c.breakers[slaveID] = bs
		logger.LogInfo("circuit breaker initialized for slave %d (MaxFailures: %d, Timeout: %s)",
			slaveID, c.config.MaxFailures, c.config.Timeout)
	}
	return bs
}

func (c *CircuitBreakerTransport) call(slaveID uint8, result *[]byte, fn func() ([]byte, error)) error {
	bs := c.breakerFor(slaveID)
	err := bs.cb.Call(func() error {
		r, callErr := fn()
		*result = r
		return callErr
	})
	c.logStateIfChanged(bs)
	return err
}

func (c *CircuitBreakerTransport) ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error) {
	var out []byte
	err := c.call(slaveID, &out, func() ([]byte, error) { return c.inner.ReadCoils(slaveID, address, quantity) })
	return out, err
}

func (c *CircuitBreakerTransport) ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error) {
	var out []byte
	err := c.call(slaveID, &out, func() ([]byte, error) { return c.inner.ReadDiscreteInputs(slaveID, address, quantity) })
	return out, err
}

func (c *CircuitBreakerTransport) ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	var out []byte
	err := c.call(slaveID, &out, func() ([]byte, error) { return c.inner.ReadInputRegisters(slaveID, address, quantity) })
	return out, err
}

func (c *CircuitBreakerTransport) ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	var out []byte
	err := c.call(slaveID, &out, func() ([]byte, error) { return c.inner.ReadHoldingRegisters(slaveID, address, quantity) })
	return out, err
}

func (c *CircuitBreakerTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error {
	bs := c.breakerFor(slaveID)
	err := bs.cb.Call(func() error {
		return c.inner.WriteSingleRegister(slaveID, address, value)
	})
	c.logStateIfChanged(bs)
	return err
}

func (c *CircuitBreakerTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error {
	bs := c.breakerFor(slaveID)
	err := bs.cb.Call(func() error {
		return c.inner.WriteSingleCoil(slaveID, address, on)
	})
	c.logStateIfChanged(bs)
	return err
}

func (c *CircuitBreakerTransport) Close() error {
	return c.inner.Close()
}

// GetState returns slaveID's current circuit breaker state (for health
// reporting and tests); an unseen slave reads CLOSED.
func (c *CircuitBreakerTransport) GetState(slaveID uint8) recovery.CircuitState {
	c.mu.Lock()
	bs, ok := c.breakers[slaveID]
	c.mu.Unlock()
	if !ok {
		return recovery.StateClosed
	}
	return bs.cb.GetState()
}

// logStateIfChanged logs a slave's circuit breaker transition exactly once,
// the moment it actually changes, instead of polling on a timer.
func (c *CircuitBreakerTransport) logStateIfChanged(bs *breakerState) {
	stats := bs.cb.GetStats()
	if stats.State == bs.loggedState {
		return
	}
	bs.loggedState = stats.State
	switch stats.State {
	case recovery.StateClosed:
		logger.LogInfo("slave %d circuit breaker: CLOSED (recovered)", stats.SlaveID)
	case recovery.StateOpen:
		logger.LogWarn("slave %d circuit breaker: OPEN (failures: %d, fast-failing requests)", stats.SlaveID, stats.Failures)
	case recovery.StateHalfOpen:
		logger.LogInfo("slave %d circuit breaker: HALF-OPEN (testing recovery)", stats.SlaveID)
	}
}
