// Package transport adapts the external-collaborator Modbus RTU transport
// (SPEC_FULL.md §1 "Out of scope") onto a concrete serial link using
// github.com/goburrow/modbus, and classifies its errors into the portable
// ModbusErrorKind enum the rest of the engine acts on (§9, "magic errno").
package transport

import (
	"errors"
	"strings"
	"time"

	gomodbus "github.com/goburrow/modbus"

	bridgeerrors "mbbridge/pkg/errors"
)

// Transport is the interface the rest of the engine programs against —
// the exact shape SPEC_FULL.md §1 assumes of the raw Modbus RTU transport.
type Transport interface {
	ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error)
	ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error)
	WriteSingleRegister(slaveID uint8, address, value uint16) error
	WriteSingleCoil(slaveID uint8, address uint16, on bool) error
	Close() error
}

// Config mirrors the modbusrtu.* configuration keys of SPEC_FULL.md §6.
type Config struct {
	Device             string
	BaudRate           int
	ResponseTimeout    time.Duration
	InterSlaveDelay    time.Duration
	MaxRetries         int
	DebugLevel         int
}

// RTUTransport is the concrete serial-link implementation. One instance is
// owned exclusively by the main loop (SPEC_FULL.md §5); it is never called
// from more than one goroutine, so no locking is required here.
type RTUTransport struct {
	handler *gomodbus.RTUClientHandler
	client  gomodbus.Client
}

// Dial opens the serial port with 8N1 framing, as required by §6.
func Dial(cfg Config) (*RTUTransport, error) {
	handler := gomodbus.NewRTUClientHandler(cfg.Device)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = cfg.ResponseTimeout
	if err := handler.Connect(); err != nil {
		return nil, err
	}
	return &RTUTransport{
		handler: handler,
		client:  gomodbus.NewClient(handler),
	}, nil
}

func (t *RTUTransport) selectSlave(slaveID uint8) {
	t.handler.SlaveId = slaveID
}

func (t *RTUTransport) ReadCoils(slaveID uint8, address, quantity uint16) ([]byte, error) {
	t.selectSlave(slaveID)
	return t.client.ReadCoils(address, quantity)
}

func (t *RTUTransport) ReadDiscreteInputs(slaveID uint8, address, quantity uint16) ([]byte, error) {
	t.selectSlave(slaveID)
	return t.client.ReadDiscreteInputs(address, quantity)
}

func (t *RTUTransport) ReadInputRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	t.selectSlave(slaveID)
	return t.client.ReadInputRegisters(address, quantity)
}

func (t *RTUTransport) ReadHoldingRegisters(slaveID uint8, address, quantity uint16) ([]byte, error) {
	t.selectSlave(slaveID)
	return t.client.ReadHoldingRegisters(address, quantity)
}

func (t *RTUTransport) WriteSingleRegister(slaveID uint8, address, value uint16) error {
	t.selectSlave(slaveID)
	_, err := t.client.WriteSingleRegister(address, value)
	return err
}

func (t *RTUTransport) WriteSingleCoil(slaveID uint8, address uint16, on bool) error {
	t.selectSlave(slaveID)
	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}
	_, err := t.client.WriteSingleCoil(address, value)
	return err
}

func (t *RTUTransport) Close() error {
	return t.handler.Close()
}

// ClassifyError turns a raw transport error into a ModbusErrorKind. The
// original source matched a literal client-library errno
// (0x6b24250) for illegal-data-address; this implementation matches on
// goburrow/modbus's typed ModbusError/exception code instead, falling back
// to a timeout heuristic for transport-level failures (SPEC_FULL.md §9).
func ClassifyError(err error) bridgeerrors.ModbusErrorKind {
	if err == nil {
		return bridgeerrors.KindOtherModbusError
	}

	var modbusErr *gomodbus.ModbusError
	if errors.As(err, &modbusErr) {
		if modbusErr.ExceptionCode == gomodbus.ExceptionCodeIllegalDataAddress {
			return bridgeerrors.KindIllegalDataAddress
		}
		return bridgeerrors.KindOtherModbusError
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "i/o timeout") || errors.Is(err, errTimeout) {
		return bridgeerrors.KindTimeout
	}
	return bridgeerrors.KindOtherModbusError
}

var errTimeout = errors.New("timeout")
