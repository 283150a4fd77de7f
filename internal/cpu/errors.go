package cpu

import (
	"errors"
	"fmt"
)

// ErrBreakpoint is returned by Step when the breakpoint predicate matches.
var ErrBreakpoint = errors.New("breakpoint hit")

// IllegalOpcodeError reports an opcode with no implemented instruction. CPU
// state is left exactly as it was before the fetch.
type IllegalOpcodeError struct {
	PC     uint16
	Opcode uint8
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("illegal opcode $%02X at $%04X", e.Opcode, e.PC)
}
