package transport

import (
	"errors"
	"testing"

	gomodbus "github.com/goburrow/modbus"

	bridgeerrors "mbbridge/pkg/errors"
)

func TestClassifyErrorIllegalDataAddress(t *testing.T) {
	err := &gomodbus.ModbusError{
		FunctionCode:  3,
		ExceptionCode: gomodbus.ExceptionCodeIllegalDataAddress,
	}
	if got := ClassifyError(err); got != bridgeerrors.KindIllegalDataAddress {
		t.Fatalf("ClassifyError() = %v, want KindIllegalDataAddress", got)
	}
}

func TestClassifyErrorOtherModbusException(t *testing.T) {
	err := &gomodbus.ModbusError{
		FunctionCode:  3,
		ExceptionCode: gomodbus.ExceptionCodeServerDeviceFailure,
	}
	if got := ClassifyError(err); got != bridgeerrors.KindOtherModbusError {
		t.Fatalf("ClassifyError() = %v, want KindOtherModbusError", got)
	}
}

func TestClassifyErrorTimeout(t *testing.T) {
	err := errors.New("read tcp: i/o timeout")
	if got := ClassifyError(err); got != bridgeerrors.KindTimeout {
		t.Fatalf("ClassifyError() = %v, want KindTimeout", got)
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if got := ClassifyError(nil); got != bridgeerrors.KindOtherModbusError {
		t.Fatalf("ClassifyError(nil) = %v, want KindOtherModbusError", got)
	}
}

func TestClassifyErrorUnrecognized(t *testing.T) {
	err := errors.New("serial port closed")
	if got := ClassifyError(err); got != bridgeerrors.KindOtherModbusError {
		t.Fatalf("ClassifyError() = %v, want KindOtherModbusError", got)
	}
}
