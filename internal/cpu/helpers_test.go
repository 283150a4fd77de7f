package cpu

import (
	"testing"
)

// MockMemory implements MemoryInterface for testing
type MockMemory struct {
	data       [0x10000]uint8 // 64KB address space
	readCount  map[uint16]int
	writeCount map[uint16]int
	writes     []memWrite
}

type memWrite struct {
	Address uint16
	Value   uint8
}

// NewMockMemory creates a new mock memory instance
func NewMockMemory() *MockMemory {
	return &MockMemory{
		readCount:  make(map[uint16]int),
		writeCount: make(map[uint16]int),
	}
}

func (m *MockMemory) Read(address uint16) uint8 {
	m.readCount[address]++
	return m.data[address]
}

func (m *MockMemory) Write(address uint16, value uint8) {
	m.writeCount[address]++
	m.writes = append(m.writes, memWrite{address, value})
	m.data[address] = value
}

func (m *MockMemory) Peek(address uint16) uint8 {
	return m.data[address]
}

// SetBytes sets multiple bytes starting at the given address
func (m *MockMemory) SetBytes(address uint16, values ...uint8) {
	for i, value := range values {
		m.data[address+uint16(i)] = value
	}
}

// ClearCounts resets all read/write counts
func (m *MockMemory) ClearCounts() {
	m.readCount = make(map[uint16]int)
	m.writeCount = make(map[uint16]int)
	m.writes = nil
}

// CPUTestHelper provides common test utilities
type CPUTestHelper struct {
	CPU    *CPU
	Memory *MockMemory
}

// NewCPUTestHelper creates a CPU whose reset vector points at $8000 and
// resets it.
func NewCPUTestHelper() *CPUTestHelper {
	memory := NewMockMemory()
	h := &CPUTestHelper{CPU: New(memory), Memory: memory}
	h.SetupResetVector(0x8000)
	return h
}

// SetupResetVector sets the reset vector and performs reset
func (h *CPUTestHelper) SetupResetVector(address uint16) {
	h.Memory.SetBytes(0xFFFC, uint8(address), uint8(address>>8))
	h.CPU.Reset()
}

// LoadProgram loads a program starting at the given address
func (h *CPUTestHelper) LoadProgram(address uint16, program ...uint8) {
	h.Memory.SetBytes(address, program...)
}

// MustStep executes one step and fails the test on error
func (h *CPUTestHelper) MustStep(t *testing.T) uint64 {
	t.Helper()
	cycles, err := h.CPU.Step()
	if err != nil {
		t.Fatalf("Step failed at PC=0x%04X: %v", h.CPU.PC, err)
	}
	return cycles
}

// AssertRegisters checks if CPU registers match expected values
func (h *CPUTestHelper) AssertRegisters(t *testing.T, testName string, expectedA, expectedX, expectedY, expectedSP uint8, expectedPC uint16) {
	t.Helper()

	if h.CPU.A != expectedA {
		t.Errorf("%s: Expected A=0x%02X, got 0x%02X", testName, expectedA, h.CPU.A)
	}
	if h.CPU.X != expectedX {
		t.Errorf("%s: Expected X=0x%02X, got 0x%02X", testName, expectedX, h.CPU.X)
	}
	if h.CPU.Y != expectedY {
		t.Errorf("%s: Expected Y=0x%02X, got 0x%02X", testName, expectedY, h.CPU.Y)
	}
	if h.CPU.SP != expectedSP {
		t.Errorf("%s: Expected SP=0x%02X, got 0x%02X", testName, expectedSP, h.CPU.SP)
	}
	if h.CPU.PC != expectedPC {
		t.Errorf("%s: Expected PC=0x%04X, got 0x%04X", testName, expectedPC, h.CPU.PC)
	}
}

// AssertStatus checks the packed status byte (unused bit set, B clear)
func (h *CPUTestHelper) AssertStatus(t *testing.T, testName string, expected uint8) {
	t.Helper()
	if got := h.CPU.GetStatusByte(); got != expected {
		t.Errorf("%s: Expected P=0x%02X (%08b), got 0x%02X (%08b)", testName, expected, expected, got, got)
	}
}

// AssertMemory checks if memory at address contains expected value
func (h *CPUTestHelper) AssertMemory(t *testing.T, testName string, address uint16, expected uint8) {
	t.Helper()
	if got := h.Memory.data[address]; got != expected {
		t.Errorf("%s: Expected memory[0x%04X]=0x%02X, got 0x%02X", testName, address, expected, got)
	}
}
