package cpu

// execute runs inst against a resolved operand. PC already points past the
// instruction. The return value is the number of extra cycles taken by a
// branch; page-cross penalties for reads are added by Step.
func (cpu *CPU) execute(inst *Instruction, op operand) uint8 {
	switch inst.Name {
	// Load/Store
	case "LDA":
		cpu.A = cpu.load(op)
		cpu.setZN(cpu.A)
	case "LDX":
		cpu.X = cpu.load(op)
		cpu.setZN(cpu.X)
	case "LDY":
		cpu.Y = cpu.load(op)
		cpu.setZN(cpu.Y)
	case "STA":
		cpu.memory.Write(op.addr, cpu.A)
	case "STX":
		cpu.memory.Write(op.addr, cpu.X)
	case "STY":
		cpu.memory.Write(op.addr, cpu.Y)

	// Transfers
	case "TAX":
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case "TAY":
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case "TXA":
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case "TYA":
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)
	case "TSX":
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)
	case "TXS":
		cpu.SP = cpu.X

	// Stack
	case "PHA":
		cpu.push(cpu.A)
	case "PHP":
		cpu.push(cpu.GetStatusByte() | bFlagMask)
	case "PLA":
		cpu.A = cpu.pop()
		cpu.setZN(cpu.A)
	case "PLP":
		cpu.SetStatusByte(cpu.pop())

	// Arithmetic and logic
	case "ADC":
		cpu.adc(cpu.load(op))
	case "SBC":
		cpu.adc(^cpu.load(op))
	case "AND":
		cpu.A &= cpu.load(op)
		cpu.setZN(cpu.A)
	case "ORA":
		cpu.A |= cpu.load(op)
		cpu.setZN(cpu.A)
	case "EOR":
		cpu.A ^= cpu.load(op)
		cpu.setZN(cpu.A)
	case "CMP":
		cpu.compare(cpu.A, cpu.load(op))
	case "CPX":
		cpu.compare(cpu.X, cpu.load(op))
	case "CPY":
		cpu.compare(cpu.Y, cpu.load(op))
	case "BIT":
		value := cpu.load(op)
		cpu.Z = cpu.A&value == 0
		cpu.V = value&vFlagMask != 0
		cpu.N = value&nFlagMask != 0

	// Increments and decrements
	case "INC":
		cpu.setZN(cpu.modify(op, cpu.readModify(op)+1))
	case "DEC":
		cpu.setZN(cpu.modify(op, cpu.readModify(op)-1))
	case "INX":
		cpu.X++
		cpu.setZN(cpu.X)
	case "INY":
		cpu.Y++
		cpu.setZN(cpu.Y)
	case "DEX":
		cpu.X--
		cpu.setZN(cpu.X)
	case "DEY":
		cpu.Y--
		cpu.setZN(cpu.Y)

	// Shifts and rotates
	case "ASL":
		cpu.modify(op, cpu.asl(cpu.readModify(op)))
	case "LSR":
		cpu.modify(op, cpu.lsr(cpu.readModify(op)))
	case "ROL":
		cpu.modify(op, cpu.rol(cpu.readModify(op)))
	case "ROR":
		cpu.modify(op, cpu.ror(cpu.readModify(op)))

	// Jumps and subroutines
	case "JMP":
		cpu.PC = op.addr
	case "JSR":
		cpu.pushWord(cpu.PC - 1)
		cpu.PC = op.addr
	case "RTS":
		cpu.PC = cpu.popWord() + 1
	case "RTI":
		cpu.SetStatusByte(cpu.pop())
		cpu.PC = cpu.popWord()
	case "BRK":
		// BRK skips a padding byte
		cpu.PC++
		cpu.interrupt(irqVector, interruptBreak)

	// Branches
	case "BCC":
		return cpu.branch(!cpu.C, op)
	case "BCS":
		return cpu.branch(cpu.C, op)
	case "BEQ":
		return cpu.branch(cpu.Z, op)
	case "BNE":
		return cpu.branch(!cpu.Z, op)
	case "BMI":
		return cpu.branch(cpu.N, op)
	case "BPL":
		return cpu.branch(!cpu.N, op)
	case "BVS":
		return cpu.branch(cpu.V, op)
	case "BVC":
		return cpu.branch(!cpu.V, op)

	// Flags
	case "CLC":
		cpu.C = false
	case "SEC":
		cpu.C = true
	case "CLI":
		cpu.I = false
	case "SEI":
		cpu.I = true
	case "CLD":
		cpu.D = false
	case "SED":
		cpu.D = true
	case "CLV":
		cpu.V = false

	case "NOP":
		// Undocumented NOPs with an operand still perform the read.
		if inst.Mode != Implied && !op.immediate {
			cpu.memory.Read(op.addr)
		}

	// Undocumented
	case "LAX":
		cpu.A = cpu.load(op)
		cpu.X = cpu.A
		cpu.setZN(cpu.A)
	case "SAX":
		cpu.memory.Write(op.addr, cpu.A&cpu.X)
	case "DCP":
		value := cpu.modify(op, cpu.readModify(op)-1)
		cpu.compare(cpu.A, value)
	case "ISB":
		value := cpu.modify(op, cpu.readModify(op)+1)
		cpu.adc(^value)
	case "SLO":
		value := cpu.modify(op, cpu.asl(cpu.readModify(op)))
		cpu.A |= value
		cpu.setZN(cpu.A)
	case "RLA":
		value := cpu.modify(op, cpu.rol(cpu.readModify(op)))
		cpu.A &= value
		cpu.setZN(cpu.A)
	case "SRE":
		value := cpu.modify(op, cpu.lsr(cpu.readModify(op)))
		cpu.A ^= value
		cpu.setZN(cpu.A)
	case "RRA":
		value := cpu.modify(op, cpu.ror(cpu.readModify(op)))
		cpu.adc(value)
	case "ANC":
		cpu.A &= cpu.load(op)
		cpu.setZN(cpu.A)
		cpu.C = cpu.N
	case "ALR":
		cpu.A = cpu.lsr(cpu.A & cpu.load(op))
	case "ARR":
		cpu.A &= cpu.load(op)
		cpu.A = cpu.A >> 1
		if cpu.C {
			cpu.A |= 0x80
		}
		cpu.setZN(cpu.A)
		cpu.C = cpu.A&0x40 != 0
		cpu.V = (cpu.A>>6)&1 != (cpu.A>>5)&1
	case "AXS":
		ax := cpu.A & cpu.X
		value := cpu.load(op)
		cpu.C = ax >= value
		cpu.X = ax - value
		cpu.setZN(cpu.X)
	}
	return 0
}

// load fetches the operand value
func (cpu *CPU) load(op operand) uint8 {
	if op.accumulator {
		return cpu.A
	}
	return cpu.memory.Read(op.addr)
}

// readModify fetches the operand of a read-modify-write instruction. The
// 6502 writes the unmodified value back before the result, which mappers
// with write-sensitive registers can observe.
func (cpu *CPU) readModify(op operand) uint8 {
	if op.accumulator {
		return cpu.A
	}
	value := cpu.memory.Read(op.addr)
	cpu.memory.Write(op.addr, value)
	return value
}

// modify stores the result of a read-modify-write instruction.
func (cpu *CPU) modify(op operand, value uint8) uint8 {
	if op.accumulator {
		cpu.A = value
	} else {
		cpu.memory.Write(op.addr, value)
	}
	return value
}

func (cpu *CPU) branch(taken bool, op operand) uint8 {
	if !taken {
		return 0
	}
	cpu.PC = op.addr
	if op.pageCrossed {
		return 2
	}
	return 1
}

// adc adds with carry in binary mode; SBC is adc of the complement.
func (cpu *CPU) adc(value uint8) {
	sum := uint16(cpu.A) + uint16(value)
	if cpu.C {
		sum++
	}
	result := uint8(sum)
	cpu.V = (cpu.A^result)&(value^result)&0x80 != 0
	cpu.C = sum > 0xFF
	cpu.A = result
	cpu.setZN(result)
}

func (cpu *CPU) compare(register, value uint8) {
	cpu.C = register >= value
	cpu.setZN(register - value)
}

func (cpu *CPU) asl(value uint8) uint8 {
	cpu.C = value&0x80 != 0
	value <<= 1
	cpu.setZN(value)
	return value
}

func (cpu *CPU) lsr(value uint8) uint8 {
	cpu.C = value&0x01 != 0
	value >>= 1
	cpu.setZN(value)
	return value
}

func (cpu *CPU) rol(value uint8) uint8 {
	carry := cpu.C
	cpu.C = value&0x80 != 0
	value <<= 1
	if carry {
		value |= 0x01
	}
	cpu.setZN(value)
	return value
}

func (cpu *CPU) ror(value uint8) uint8 {
	carry := cpu.C
	cpu.C = value&0x01 != 0
	value >>= 1
	if carry {
		value |= 0x80
	}
	cpu.setZN(value)
	return value
}
