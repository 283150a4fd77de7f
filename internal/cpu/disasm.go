package cpu

import (
	"fmt"
	"strings"
)

// Disassembly is one decoded instruction in nestest.log notation.
type Disassembly struct {
	PC         uint16
	Bytes      []uint8
	Mnemonic   string
	Operand    string
	Unofficial bool
}

// HexBytes returns the raw instruction bytes, e.g. "4C F5 C5".
func (d Disassembly) HexBytes() string {
	parts := make([]string, len(d.Bytes))
	for i, b := range d.Bytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Text returns mnemonic and operand, e.g. "LDA $00 = 00".
func (d Disassembly) Text() string {
	if d.Operand == "" {
		return d.Mnemonic
	}
	return d.Mnemonic + " " + d.Operand
}

// Disassemble decodes the instruction at pc using the current register
// values to annotate effective addresses. Memory is read through Peek when
// the bus supports it, so disassembling does not disturb I/O registers.
func (cpu *CPU) Disassemble(pc uint16) Disassembly {
	opcode := cpu.peek(pc)
	inst := instructionTable[opcode]
	if inst == nil {
		return Disassembly{PC: pc, Bytes: []uint8{opcode}, Mnemonic: "???", Unofficial: true}
	}

	d := Disassembly{PC: pc, Mnemonic: inst.Name, Unofficial: inst.Unofficial}
	for i := uint16(0); i < uint16(inst.Bytes); i++ {
		d.Bytes = append(d.Bytes, cpu.peek(pc+i))
	}

	var arg uint8
	var arg16 uint16
	if inst.Bytes > 1 {
		arg = d.Bytes[1]
	}
	if inst.Bytes > 2 {
		arg16 = uint16(d.Bytes[2])<<8 | uint16(d.Bytes[1])
	}

	switch inst.Mode {
	case Accumulator:
		d.Operand = "A"
	case Immediate:
		d.Operand = fmt.Sprintf("#$%02X", arg)
	case ZeroPage:
		d.Operand = fmt.Sprintf("$%02X = %02X", arg, cpu.peek(uint16(arg)))
	case ZeroPageX:
		addr := arg + cpu.X
		d.Operand = fmt.Sprintf("$%02X,X @ %02X = %02X", arg, addr, cpu.peek(uint16(addr)))
	case ZeroPageY:
		addr := arg + cpu.Y
		d.Operand = fmt.Sprintf("$%02X,Y @ %02X = %02X", arg, addr, cpu.peek(uint16(addr)))
	case Relative:
		d.Operand = fmt.Sprintf("$%04X", pc+2+uint16(int8(arg)))
	case Absolute:
		if inst.Name == "JMP" || inst.Name == "JSR" {
			d.Operand = fmt.Sprintf("$%04X", arg16)
		} else {
			d.Operand = fmt.Sprintf("$%04X = %02X", arg16, cpu.peek(arg16))
		}
	case AbsoluteX:
		addr := arg16 + uint16(cpu.X)
		d.Operand = fmt.Sprintf("$%04X,X @ %04X = %02X", arg16, addr, cpu.peek(addr))
	case AbsoluteY:
		addr := arg16 + uint16(cpu.Y)
		d.Operand = fmt.Sprintf("$%04X,Y @ %04X = %02X", arg16, addr, cpu.peek(addr))
	case Indirect:
		low := uint16(cpu.peek(arg16))
		high := uint16(cpu.peek(arg16&pageMask | uint16(uint8(arg16)+1)))
		d.Operand = fmt.Sprintf("($%04X) = %04X", arg16, high<<8|low)
	case IndexedIndirect:
		zp := arg + cpu.X
		addr := cpu.peekZeroPage16(zp)
		d.Operand = fmt.Sprintf("($%02X,X) @ %02X = %04X = %02X", arg, zp, addr, cpu.peek(addr))
	case IndirectIndexed:
		base := cpu.peekZeroPage16(arg)
		addr := base + uint16(cpu.Y)
		d.Operand = fmt.Sprintf("($%02X),Y = %04X @ %04X = %02X", arg, base, addr, cpu.peek(addr))
	}
	return d
}

func (cpu *CPU) peekZeroPage16(zp uint8) uint16 {
	return uint16(cpu.peek(uint16(zp+1)))<<8 | uint16(cpu.peek(uint16(zp)))
}
