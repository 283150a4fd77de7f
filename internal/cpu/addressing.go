package cpu

// Addressing modes
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

// operandSize is the instruction length in bytes for each mode.
var operandSize = [...]uint8{
	Implied:         1,
	Accumulator:     1,
	Immediate:       2,
	ZeroPage:        2,
	ZeroPageX:       2,
	ZeroPageY:       2,
	Relative:        2,
	Absolute:        3,
	AbsoluteX:       3,
	AbsoluteY:       3,
	Indirect:        3,
	IndexedIndirect: 2,
	IndirectIndexed: 2,
}

// operand is a resolved addressing mode.
type operand struct {
	addr        uint16
	pageCrossed bool
	immediate   bool
	accumulator bool
}

// resolve computes the effective address of the instruction at PC. It only
// reads memory; PC and registers are not modified.
func (cpu *CPU) resolve(mode AddressingMode) operand {
	pc := cpu.PC

	switch mode {
	case Accumulator:
		return operand{accumulator: true}

	case Immediate:
		return operand{addr: pc + 1, immediate: true}

	case ZeroPage:
		return operand{addr: uint16(cpu.memory.Read(pc + 1))}

	case ZeroPageX:
		return operand{addr: uint16(cpu.memory.Read(pc+1) + cpu.X)}

	case ZeroPageY:
		return operand{addr: uint16(cpu.memory.Read(pc+1) + cpu.Y)}

	case Relative:
		offset := int8(cpu.memory.Read(pc + 1))
		next := pc + 2
		target := next + uint16(offset)
		return operand{addr: target, pageCrossed: next&pageMask != target&pageMask}

	case Absolute:
		return operand{addr: cpu.read16(pc + 1)}

	case AbsoluteX:
		base := cpu.read16(pc + 1)
		addr := base + uint16(cpu.X)
		return operand{addr: addr, pageCrossed: base&pageMask != addr&pageMask}

	case AbsoluteY:
		base := cpu.read16(pc + 1)
		addr := base + uint16(cpu.Y)
		return operand{addr: addr, pageCrossed: base&pageMask != addr&pageMask}

	case Indirect:
		// The high byte is fetched without carrying into the page: JMP ($10FF)
		// reads $10FF and $1000.
		ptr := cpu.read16(pc + 1)
		low := uint16(cpu.memory.Read(ptr))
		high := uint16(cpu.memory.Read(ptr&pageMask | uint16(uint8(ptr)+1)))
		return operand{addr: high<<8 | low}

	case IndexedIndirect:
		zp := cpu.memory.Read(pc+1) + cpu.X
		return operand{addr: cpu.readZeroPage16(zp)}

	case IndirectIndexed:
		base := cpu.readZeroPage16(cpu.memory.Read(pc + 1))
		addr := base + uint16(cpu.Y)
		return operand{addr: addr, pageCrossed: base&pageMask != addr&pageMask}
	}

	return operand{}
}

// readZeroPage16 reads a pointer from the zero page, wrapping $FF to $00.
func (cpu *CPU) readZeroPage16(zp uint8) uint16 {
	low := uint16(cpu.memory.Read(uint16(zp)))
	high := uint16(cpu.memory.Read(uint16(zp + 1)))
	return high<<8 | low
}
