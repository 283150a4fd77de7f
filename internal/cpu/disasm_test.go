package cpu

import "testing"

func TestDisassemble(t *testing.T) {
	tests := []struct {
		name  string
		code  []uint8
		setup func(h *CPUTestHelper)
		bytes string
		text  string
	}{
		{"implied", []uint8{0xEA}, nil, "EA", "NOP"},
		{"accumulator", []uint8{0x0A}, nil, "0A", "ASL A"},
		{"immediate", []uint8{0xA9, 0x7F}, nil, "A9 7F", "LDA #$7F"},
		{"zero page", []uint8{0xA5, 0x10}, func(h *CPUTestHelper) { h.Memory.SetBytes(0x10, 0x42) }, "A5 10", "LDA $10 = 42"},
		{"zero page x wraps", []uint8{0xB5, 0xFF}, func(h *CPUTestHelper) {
			h.CPU.X = 0x02
			h.Memory.SetBytes(0x01, 0x99)
		}, "B5 FF", "LDA $FF,X @ 01 = 99"},
		{"absolute", []uint8{0x8D, 0x00, 0x03}, nil, "8D 00 03", "STA $0300 = 00"},
		{"jump absolute", []uint8{0x4C, 0xF5, 0xC5}, nil, "4C F5 C5", "JMP $C5F5"},
		{"absolute x", []uint8{0x9D, 0x00, 0x03}, func(h *CPUTestHelper) { h.CPU.X = 2 }, "9D 00 03", "STA $0300,X @ 0302 = 00"},
		{"indirect page bug", []uint8{0x6C, 0xFF, 0x02}, func(h *CPUTestHelper) {
			h.Memory.SetBytes(0x02FF, 0x34)
			h.Memory.SetBytes(0x0200, 0x12)
		}, "6C FF 02", "JMP ($02FF) = 1234"},
		{"indexed indirect", []uint8{0xA1, 0x80}, func(h *CPUTestHelper) {
			h.CPU.X = 0x02
			h.Memory.SetBytes(0x82, 0x00, 0x04)
			h.Memory.SetBytes(0x0400, 0x5A)
		}, "A1 80", "LDA ($80,X) @ 82 = 0400 = 5A"},
		{"indirect indexed", []uint8{0xB1, 0x80}, func(h *CPUTestHelper) {
			h.CPU.Y = 0x04
			h.Memory.SetBytes(0x80, 0x00, 0x02)
			h.Memory.SetBytes(0x0204, 0x55)
		}, "B1 80", "LDA ($80),Y = 0200 @ 0204 = 55"},
		{"relative", []uint8{0xD0, 0x10}, nil, "D0 10", "BNE $8012"},
		{"illegal", []uint8{0x02}, nil, "02", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCPUTestHelper()
			h.LoadProgram(0x8000, tt.code...)
			if tt.setup != nil {
				tt.setup(h)
			}
			h.Memory.ClearCounts()

			d := h.CPU.Disassemble(0x8000)
			if d.HexBytes() != tt.bytes {
				t.Errorf("bytes: expected %q, got %q", tt.bytes, d.HexBytes())
			}
			if d.Text() != tt.text {
				t.Errorf("text: expected %q, got %q", tt.text, d.Text())
			}
			if len(h.Memory.readCount) != 0 {
				t.Errorf("Disassemble should only peek, saw %d reads", len(h.Memory.readCount))
			}
		})
	}
}

func TestDisassembleMarksUnofficial(t *testing.T) {
	h := NewCPUTestHelper()
	h.LoadProgram(0x8000, 0xA7, 0x00)

	d := h.CPU.Disassemble(0x8000)
	if !d.Unofficial || d.Mnemonic != "LAX" {
		t.Errorf("Expected unofficial LAX, got %+v", d)
	}
}
