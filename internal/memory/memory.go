// Package memory implements the CPU and PPU address spaces of the NES.
package memory

import (
	"log"

	"cyclenes/internal/cartridge"
)

// Memory represents the NES CPU memory map
type Memory struct {
	// Internal RAM (2KB, mirrored to 8KB)
	ram [0x800]uint8

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8)

	// Open bus - last value driven on the data bus
	openBusValue uint8

	// clock stamps cartridge writes; without one every write gets a fresh
	// sequence number.
	clock    func() uint64
	writeSeq uint64

	violations    uint64
	violationHook func(error)
	loggedAddrs   map[uint16]bool
}

// PPUInterface defines the interface for PPU register access
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for input system access
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for cartridge access. PRG accesses
// may fail with a *cartridge.MapperViolation.
type CartridgeInterface interface {
	ReadPRG(address uint16) (uint8, error)
	WritePRG(address uint16, value uint8, cycle uint64) error
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirroring() cartridge.MirrorMode
}

// New creates a new Memory instance. RAM starts zero-filled.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
		loggedAddrs:  make(map[uint16]bool),
	}
}

// SetInputSystem sets the input system for controller access
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the function called on writes to $4014
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// SetClock sets the source of cycle stamps passed with cartridge writes.
func (m *Memory) SetClock(clock func() uint64) {
	m.clock = clock
}

// SetViolationHook registers a function that receives every recovered
// mapper violation.
func (m *Memory) SetViolationHook(hook func(error)) {
	m.violationHook = hook
}

// Violations returns the number of mapper violations recovered so far.
func (m *Memory) Violations() uint64 {
	return m.violations
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		// PPU registers (mirrored every 8 bytes)
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4015:
			// Bit 5 is not driven
			value = m.apuRegisters.ReadStatus() | m.openBusValue&0x20
		case 0x4016, 0x4017:
			// Controllers drive only the low bits
			value = m.openBusValue & 0xE0
			if m.inputSystem != nil {
				value |= m.inputSystem.Read(address) & 0x1F
			}
		default:
			// Write-only registers
			value = m.openBusValue
		}

	default:
		v, err := m.cartridge.ReadPRG(address)
		if err != nil {
			m.recordViolation(address, err)
			v = m.openBusValue
		}
		value = v
	}

	m.openBusValue = value
	return value
}

// Peek returns the byte at address without side effects. I/O registers read
// back as the open-bus value.
func (m *Memory) Peek(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.ram[address&0x07FF]
	case address < 0x4020:
		return m.openBusValue
	}
	v, err := m.cartridge.ReadPRG(address)
	if err != nil {
		return m.openBusValue
	}
	return v
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	m.openBusValue = value

	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if m.dmaCallback != nil {
				m.dmaCallback(value)
			} else {
				m.performOAMDMA(value)
			}
		case address == 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		case address <= 0x4017:
			m.apuRegisters.WriteRegister(address, value)
		}
		// Test mode registers ($4018-$401F) are ignored

	default:
		if err := m.cartridge.WritePRG(address, value, m.stamp()); err != nil {
			m.recordViolation(address, err)
		}
	}
}

func (m *Memory) stamp() uint64 {
	if m.clock != nil {
		return m.clock()
	}
	m.writeSeq++
	return m.writeSeq
}

func (m *Memory) recordViolation(address uint16, err error) {
	m.violations++
	if m.violationHook != nil {
		m.violationHook(err)
	}
	if !m.loggedAddrs[address] {
		m.loggedAddrs[address] = true
		log.Printf("[MAPPER] %v (open bus substituted)", err)
	}
}

// performOAMDMA copies a CPU page to OAM when no DMA callback is installed.
func (m *Memory) performOAMDMA(page uint8) {
	baseAddress := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.ppuRegisters.WriteRegister(0x2004, m.Read(baseAddress+i))
	}
}
