// Package tag implements the Modbus tag model: address decoding (C3) and
// the per-register read/write/local tag state machines (C2).
package tag

import "fmt"

// RegisterClass is the decoded Modicon-style register class a tag's
// register_address falls into.
type RegisterClass int

const (
	Coil RegisterClass = iota
	DiscreteInput
	InputRegister
	HoldingRegister
)

func (c RegisterClass) String() string {
	switch c {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete_input"
	case InputRegister:
		return "input_register"
	case HoldingRegister:
		return "holding_register"
	default:
		return "unknown"
	}
}

// Function codes used by this register class for read and write access.
// Zero means "not writable".
func (c RegisterClass) ReadFunctionCode() uint8 {
	switch c {
	case Coil:
		return 1
	case DiscreteInput:
		return 2
	case InputRegister:
		return 4
	case HoldingRegister:
		return 3
	default:
		return 0
	}
}

func (c RegisterClass) WriteFunctionCode() uint8 {
	switch c {
	case Coil:
		return 5
	case HoldingRegister:
		return 6
	default:
		return 0
	}
}

// Writable reports whether this class has a write function code.
func (c RegisterClass) Writable() bool {
	return c.WriteFunctionCode() != 0
}

// SingleBit reports whether values of this class are clamped to 0/1.
func (c RegisterClass) SingleBit() bool {
	return c == Coil || c == DiscreteInput
}

// ErrInvalidAddress is returned by DecodeAddress for register numbers
// outside the four defined ranges.
type ErrInvalidAddress struct {
	Address int
}

func (e *ErrInvalidAddress) Error() string {
	return fmt.Sprintf("register address %d is not in a decodable range", e.Address)
}

// DecodeAddress maps a 0-49999 Modicon-style register number onto its
// register class and in-class offset, per SPEC_FULL.md §4.3.
func DecodeAddress(address int) (class RegisterClass, offset uint16, err error) {
	switch {
	case address >= 0 && address <= 9999:
		return Coil, uint16(address), nil
	case address >= 10000 && address <= 19999:
		return DiscreteInput, uint16(address - 10000), nil
	case address >= 30000 && address <= 39999:
		return InputRegister, uint16(address - 30000), nil
	case address >= 40000 && address <= 49999:
		return HoldingRegister, uint16(address - 40000), nil
	default:
		return 0, 0, &ErrInvalidAddress{Address: address}
	}
}

// ClassBase returns the register-number base for a class, the inverse
// direction of DecodeAddress — used to reconstruct a register_address
// from (class, offset) when building range-read responses.
func ClassBase(class RegisterClass) int {
	switch class {
	case Coil:
		return 0
	case DiscreteInput:
		return 10000
	case InputRegister:
		return 30000
	case HoldingRegister:
		return 40000
	default:
		return 0
	}
}
