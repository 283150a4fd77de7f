// Package bus implements the system bus for communication between NES components.
package bus

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"cyclenes/internal/apu"
	"cyclenes/internal/cartridge"
	"cyclenes/internal/cpu"
	"cyclenes/internal/debug"
	"cyclenes/internal/input"
	"cyclenes/internal/memory"
	"cyclenes/internal/ppu"
)

const (
	// PPU dots per CPU cycle (NTSC)
	dotsPerCycle = 3
	// OAM DMA stalls the CPU for 513 cycles, plus one to align on odd cycles
	dmaCycles = 513
)

// Frame is a completed picture in 0xRRGGBB
type Frame = [ppu.ScreenWidth * ppu.ScreenHeight]uint32

// FrameFunc receives a copy of every completed frame
type FrameFunc func(frame Frame)

// Condition decides whether a breakpoint at a matching address fires
type Condition func(s Snapshot) bool

// TrapError reports an instruction that left PC unchanged, such as JMP to
// itself. Self-checking test programs park there when they finish or fail.
type TrapError struct {
	PC     uint16
	Cycles uint64
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trapped at $%04X after %d cycles", e.PC, e.Cycles)
}

// Snapshot is a copy of the observable machine state
type Snapshot struct {
	CPU    cpu.State
	PPU    ppu.State
	Cycles uint64
	Frames uint64
}

// Bus connects all NES components together
type Bus struct {
	// Core components
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Input     *input.InputState
	Cartridge *cartridge.Cartridge

	// Flat image mode
	flat  *memory.Flat
	entry uint16

	// OAM DMA latched by a $4014 write, serviced after the instruction
	dmaPending bool
	dmaPage    uint8

	frames        uint64
	frameReady    bool
	frameCallback FrameFunc

	breakpoints     map[uint16]Condition
	tolerateIllegal bool
	illegalSkipped  uint64
	trapDetection   bool

	tracer *debug.Tracer
}

// New creates a system bus around a cartridge and resets it
func New(cart *cartridge.Cartridge) *Bus {
	b := &Bus{
		Cartridge:   cart,
		APU:         apu.New(),
		Input:       input.NewInputState(),
		breakpoints: make(map[uint16]Condition),
	}
	b.PPU = ppu.New(memory.NewPPUMemory(cart))

	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.requestDMA)

	b.CPU = cpu.New(b.Memory)
	b.Memory.SetClock(b.CPU.Cycles)

	b.Reset()
	return b
}

// NewFlat runs a raw program image loaded at load with execution starting
// at entry. The CPU sees a linear 64KB memory with no I/O; the PPU runs
// beside it over a blank CHR-RAM board so trace lines keep their PPU column.
// Trap detection is on.
func NewFlat(image []byte, load, entry uint16) (*Bus, error) {
	flat := memory.NewFlat()
	if err := flat.Load(image, load); err != nil {
		return nil, err
	}

	cart := cartridge.NewBlank()
	b := &Bus{
		Cartridge:     cart,
		APU:           apu.New(),
		Input:         input.NewInputState(),
		PPU:           ppu.New(memory.NewPPUMemory(cart)),
		flat:          flat,
		entry:         entry,
		breakpoints:   make(map[uint16]Condition),
		trapDetection: true,
	}
	b.CPU = cpu.New(flat)
	b.Reset()
	return b, nil
}

// Reset puts every component in its reset state. The CPU reset sequence
// takes 7 cycles, during which the PPU advances 21 dots.
func (b *Bus) Reset() {
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	b.Cartridge.Reset()

	b.dmaPending = false
	b.frames = 0
	b.frameReady = false

	before := b.CPU.Cycles()
	b.CPU.Reset()
	if b.flat != nil {
		b.CPU.PC = b.entry
	}
	b.tick(b.CPU.Cycles() - before)
}

// Step executes one CPU instruction, or services one interrupt, and advances
// the PPU and APU by the cycles it took. It returns the cycles consumed,
// including any DMA stall.
//
// Execution stops with cpu.ErrBreakpoint, *cpu.IllegalOpcodeError (unless
// tolerated) or *TrapError. In every case the machine state is intact and
// the caller may continue stepping.
func (b *Bus) Step() (uint64, error) {
	pc := b.CPU.PC
	interrupt := b.CPU.InterruptPending()

	var line string
	if b.tracer != nil && !interrupt {
		line = debug.FormatLine(b.CPU.State(), b.CPU.Disassemble(pc), b.PPU.GetScanline(), b.PPU.GetCycle())
	}

	cycles, err := b.CPU.Step()
	if err != nil {
		var illegal *cpu.IllegalOpcodeError
		if !errors.As(err, &illegal) || !b.tolerateIllegal {
			return 0, err
		}
		if b.illegalSkipped == 0 {
			log.Printf("[EMULATOR] %v, skipping illegal opcodes from now on", err)
		}
		b.illegalSkipped++
		cycles = b.CPU.SkipOpcode()
	}
	if line != "" {
		b.tracer.Record(line)
	}

	cycles += b.serviceDMA()
	b.tick(cycles)

	if b.trapDetection && !interrupt && b.CPU.PC == pc {
		return cycles, &TrapError{PC: pc, Cycles: b.CPU.Cycles()}
	}
	return cycles, nil
}

// tick advances the PPU three dots and the APU one step per CPU cycle, then
// routes their interrupt outputs to the CPU.
func (b *Bus) tick(cycles uint64) {
	for i := uint64(0); i < cycles; i++ {
		b.APU.Step()
		for d := 0; d < dotsPerCycle; d++ {
			b.PPU.Step()
		}
	}

	if b.PPU.NMIPending() {
		b.PPU.AcknowledgeNMI()
		b.CPU.TriggerNMI()
	}
	// Flat images have no $4015/$4017 to acknowledge the frame IRQ
	if b.flat == nil {
		b.CPU.SetIRQ(b.APU.IRQ())
	}

	if b.PPU.FrameComplete() {
		b.frames++
		b.frameReady = true
	}
}

func (b *Bus) requestDMA(page uint8) {
	b.dmaPending = true
	b.dmaPage = page
}

// serviceDMA copies the latched page to OAM and charges the stall to the
// CPU. The copy reads through the CPU bus, so it sees RAM mirrors and
// cartridge space as the CPU does.
func (b *Bus) serviceDMA() uint64 {
	if !b.dmaPending {
		return 0
	}
	b.dmaPending = false

	stall := uint64(dmaCycles)
	if b.CPU.Cycles()%2 == 1 {
		stall++
	}

	base := uint16(b.dmaPage) << 8
	for i := uint16(0); i < 256; i++ {
		b.PPU.WriteOAM(uint8(i), b.Memory.Read(base+i))
	}
	b.CPU.AddCycles(stall)
	return stall
}

// RunFrame steps until the PPU finishes a frame and hands the frame to the
// frame callback.
func (b *Bus) RunFrame() error {
	b.frameReady = false
	if err := b.RunUntil(func(b *Bus) bool { return b.frameReady }); err != nil {
		return err
	}
	b.frameReady = false
	if b.frameCallback != nil {
		b.frameCallback(b.PPU.FrameBuffer())
	}
	return nil
}

// RunCycles steps until at least n more CPU cycles have elapsed.
func (b *Bus) RunCycles(n uint64) error {
	target := b.CPU.Cycles() + n
	return b.RunUntil(func(b *Bus) bool { return b.CPU.Cycles() >= target })
}

// RunUntil steps until pred returns true. pred is checked before each step.
func (b *Bus) RunUntil(pred func(b *Bus) bool) error {
	for !pred(b) {
		if _, err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns a copy of the last completed frame
func (b *Bus) Frame() Frame {
	return b.PPU.FrameBuffer()
}

// Frames returns the number of frames completed since reset
func (b *Bus) Frames() uint64 {
	return b.frames
}

// Snapshot returns the CPU and PPU state and the cycle and frame counters
func (b *Bus) Snapshot() Snapshot {
	return Snapshot{
		CPU:    b.CPU.State(),
		PPU:    b.PPU.State(),
		Cycles: b.CPU.Cycles(),
		Frames: b.frames,
	}
}

// Peek reads CPU memory without side effects
func (b *Bus) Peek(address uint16) uint8 {
	if b.flat != nil {
		return b.flat.Peek(address)
	}
	return b.Memory.Peek(address)
}

// Poke writes CPU memory as the CPU would
func (b *Bus) Poke(address uint16, value uint8) {
	if b.flat != nil {
		b.flat.Write(address, value)
		return
	}
	b.Memory.Write(address, value)
}

// SetFrameCallback sets the function that receives completed frames
func (b *Bus) SetFrameCallback(fn FrameFunc) {
	b.frameCallback = fn
}

// SetTracer starts recording one trace line per executed instruction.
// Interrupt entries are not traced. A nil tracer stops tracing.
func (b *Bus) SetTracer(t *debug.Tracer) {
	b.tracer = t
}

// Tracer returns the installed tracer, if any
func (b *Bus) Tracer() *debug.Tracer {
	return b.tracer
}

// SetTolerateIllegal makes Step skip undecodable opcodes as two-cycle NOPs
// instead of failing.
func (b *Bus) SetTolerateIllegal(tolerate bool) {
	b.tolerateIllegal = tolerate
}

// IllegalSkipped returns how many illegal opcodes were skipped
func (b *Bus) IllegalSkipped() uint64 {
	return b.illegalSkipped
}

// SetTrapDetection enables the *TrapError stop. Cartridge games commonly
// idle in JMP-to-self loops waiting for NMI, so it is off for New and on
// for NewFlat.
func (b *Bus) SetTrapDetection(enabled bool) {
	b.trapDetection = enabled
}

// AddBreakpoint stops execution before the instruction at address
func (b *Bus) AddBreakpoint(address uint16) {
	b.AddBreakpointCond(address, nil)
}

// AddBreakpointCond stops before the instruction at address when cond
// returns true. A nil cond always fires.
func (b *Bus) AddBreakpointCond(address uint16, cond Condition) {
	b.breakpoints[address] = cond
	b.CPU.SetBreakpoint(b.checkBreakpoint)
}

// RemoveBreakpoint deletes the breakpoint at address, reporting whether
// one existed.
func (b *Bus) RemoveBreakpoint(address uint16) bool {
	if _, ok := b.breakpoints[address]; !ok {
		return false
	}
	delete(b.breakpoints, address)
	if len(b.breakpoints) == 0 {
		b.CPU.SetBreakpoint(nil)
	}
	return true
}

// Breakpoints returns the breakpoint addresses in ascending order
func (b *Bus) Breakpoints() []uint16 {
	addrs := make([]uint16, 0, len(b.breakpoints))
	for addr := range b.breakpoints {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Resume lets the next Step execute the instruction a breakpoint stopped at
func (b *Bus) Resume() {
	b.CPU.ResumeFromBreakpoint()
}

func (b *Bus) checkBreakpoint(pc uint16, opcode uint8) bool {
	cond, ok := b.breakpoints[pc]
	if !ok {
		return false
	}
	return cond == nil || cond(b.Snapshot())
}

// SetAudioSink routes APU samples to sink
func (b *Bus) SetAudioSink(sink apu.SampleSink) {
	b.APU.SetSink(sink)
}

// SetControllerButtons sets all button states for a controller, in
// A, B, Select, Start, Up, Down, Left, Right order
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 1:
		b.Input.Controller1.SetButtons(buttons)
	case 2:
		b.Input.Controller2.SetButtons(buttons)
	}
}
