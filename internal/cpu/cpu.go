// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

const (
	// Stack base address
	stackBase = 0x0100
	// Status register bit masks
	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01
	// Page boundary mask
	pageMask = 0xFF00
	// Interrupt vectors
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Peeker is implemented by memories that can be read without side effects.
// The CPU uses it for breakpoint checks and disassembly when available.
type Peeker interface {
	Peek(address uint16) uint8
}

// BreakpointFunc decides whether execution should stop before the
// instruction at pc.
type BreakpointFunc func(pc uint16, opcode uint8) bool

// CPU represents the 6502 processor used in the NES
type CPU struct {
	// Registers
	A  uint8  // Accumulator
	X  uint8  // X register
	Y  uint8  // Y register
	SP uint8  // Stack pointer
	PC uint16 // Program counter

	// Status register flags. B and the unused bit only exist on the stack.
	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal mode (tracked, never affects arithmetic)
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface
	peeker Peeker

	cycles uint64

	nmiPending bool
	irqLine    bool

	breakpoint     BreakpointFunc
	skipBreakpoint bool
}

// New creates a new CPU instance. Registers hold their power-up values
// until Reset runs the reset sequence.
func New(memory MemoryInterface) *CPU {
	cpu := &CPU{memory: memory}
	if p, ok := memory.(Peeker); ok {
		cpu.peeker = p
	}
	return cpu
}

// Reset runs the 6502 reset sequence: the interrupt sequence with stack
// writes suppressed, so SP drops by three and nothing is stored. A, X and Y
// are left alone.
func (cpu *CPU) Reset() {
	cpu.nmiPending = false
	cpu.irqLine = false
	cpu.skipBreakpoint = false
	cpu.interrupt(resetVector, interruptReset)
	cpu.cycles += 7
}

// Step executes one instruction, or services one pending interrupt, and
// returns the cycles consumed.
//
// When a breakpoint matches, Step returns ErrBreakpoint without touching any
// state. An undecodable opcode yields *IllegalOpcodeError, also before any
// state change; callers that tolerate it can call SkipOpcode.
func (cpu *CPU) Step() (uint64, error) {
	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.interrupt(nmiVector, interruptHardware)
		cpu.cycles += 7
		return 7, nil
	}
	if cpu.irqLine && !cpu.I {
		cpu.interrupt(irqVector, interruptHardware)
		cpu.cycles += 7
		return 7, nil
	}

	if cpu.breakpoint != nil {
		if cpu.skipBreakpoint {
			cpu.skipBreakpoint = false
		} else if cpu.breakpoint(cpu.PC, cpu.peek(cpu.PC)) {
			return 0, ErrBreakpoint
		}
	}

	opcode := cpu.memory.Read(cpu.PC)
	inst := instructionTable[opcode]
	if inst == nil {
		return 0, &IllegalOpcodeError{PC: cpu.PC, Opcode: opcode}
	}

	op := cpu.resolve(inst.Mode)
	cpu.PC += uint16(inst.Bytes)

	cycles := uint64(inst.Cycles) + uint64(cpu.execute(inst, op))
	if inst.PagePenalty && op.pageCrossed {
		cycles++
	}
	cpu.cycles += cycles
	return cycles, nil
}

// SkipOpcode steps over an undecodable opcode as a two-cycle NOP.
func (cpu *CPU) SkipOpcode() uint64 {
	cpu.PC++
	cpu.cycles += 2
	return 2
}

// SetBreakpoint installs the predicate checked before each instruction.
// A nil predicate disables breakpoints.
func (cpu *CPU) SetBreakpoint(fn BreakpointFunc) {
	cpu.breakpoint = fn
}

// ResumeFromBreakpoint makes the next Step execute the instruction at PC
// even if the breakpoint predicate still matches it.
func (cpu *CPU) ResumeFromBreakpoint() {
	cpu.skipBreakpoint = true
}

// TriggerNMI latches an NMI edge; it is serviced at the start of the next Step.
func (cpu *CPU) TriggerNMI() {
	cpu.nmiPending = true
}

// SetIRQ sets the level of the IRQ line
func (cpu *CPU) SetIRQ(state bool) {
	cpu.irqLine = state
}

// InterruptPending reports whether the next Step will service an interrupt
// instead of executing an instruction.
func (cpu *CPU) InterruptPending() bool {
	return cpu.nmiPending || (cpu.irqLine && !cpu.I)
}

// Cycles returns the total number of cycles executed
func (cpu *CPU) Cycles() uint64 {
	return cpu.cycles
}

// AddCycles charges stall cycles, such as OAM DMA, to the CPU.
func (cpu *CPU) AddCycles(n uint64) {
	cpu.cycles += n
}

// State is a snapshot of the CPU registers.
type State struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8
	Cycles      uint64
	NMIPending  bool
	IRQLine     bool
}

func (cpu *CPU) State() State {
	return State{
		A:          cpu.A,
		X:          cpu.X,
		Y:          cpu.Y,
		SP:         cpu.SP,
		PC:         cpu.PC,
		P:          cpu.GetStatusByte(),
		Cycles:     cpu.cycles,
		NMIPending: cpu.nmiPending,
		IRQLine:    cpu.irqLine,
	}
}

// GetStatusByte returns the status register as software sees it: the unused
// bit set and B clear.
func (cpu *CPU) GetStatusByte() uint8 {
	status := uint8(unusedMask)
	if cpu.N {
		status |= nFlagMask
	}
	if cpu.V {
		status |= vFlagMask
	}
	if cpu.D {
		status |= dFlagMask
	}
	if cpu.I {
		status |= iFlagMask
	}
	if cpu.Z {
		status |= zFlagMask
	}
	if cpu.C {
		status |= cFlagMask
	}
	return status
}

// SetStatusByte loads the flags from a byte; B and the unused bit are ignored.
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = status&nFlagMask != 0
	cpu.V = status&vFlagMask != 0
	cpu.D = status&dFlagMask != 0
	cpu.I = status&iFlagMask != 0
	cpu.Z = status&zFlagMask != 0
	cpu.C = status&cFlagMask != 0
}

type interruptKind int

const (
	interruptReset interruptKind = iota
	interruptHardware
	interruptBreak
)

// interrupt is the sequence shared by RESET, NMI, IRQ and BRK: push PC and
// status, set I, load PC from the vector. RESET goes through the same stack
// pointer motion but the bus is held in read mode, so nothing is written.
func (cpu *CPU) interrupt(vector uint16, kind interruptKind) {
	if kind == interruptReset {
		cpu.SP -= 3
	} else {
		cpu.pushWord(cpu.PC)
		status := cpu.GetStatusByte()
		if kind == interruptBreak {
			status |= bFlagMask
		}
		cpu.push(status)
	}
	cpu.I = true
	cpu.PC = cpu.read16(vector)
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return high<<8 | low
}

func (cpu *CPU) read16(address uint16) uint16 {
	low := uint16(cpu.memory.Read(address))
	high := uint16(cpu.memory.Read(address + 1))
	return high<<8 | low
}

func (cpu *CPU) peek(address uint16) uint8 {
	if cpu.peeker != nil {
		return cpu.peeker.Peek(address)
	}
	return cpu.memory.Read(address)
}

// setZN sets Zero and Negative flags based on value
func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = value&nFlagMask != 0
}
