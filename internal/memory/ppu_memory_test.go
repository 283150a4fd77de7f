package memory

import (
	"testing"

	"cyclenes/internal/cartridge"
)

func TestPPUMemory_NametableMirroring(t *testing.T) {
	tests := []struct {
		name   string
		mode   cartridge.MirrorMode
		shared [][2]uint16 // pairs of addresses that must alias
		apart  [][2]uint16 // pairs that must not
	}{
		{
			name:   "horizontal",
			mode:   cartridge.MirrorHorizontal,
			shared: [][2]uint16{{0x2000, 0x2400}, {0x2800, 0x2C00}},
			apart:  [][2]uint16{{0x2000, 0x2800}},
		},
		{
			name:   "vertical",
			mode:   cartridge.MirrorVertical,
			shared: [][2]uint16{{0x2000, 0x2800}, {0x2400, 0x2C00}},
			apart:  [][2]uint16{{0x2000, 0x2400}},
		},
		{
			name:   "single lower",
			mode:   cartridge.MirrorSingleScreen0,
			shared: [][2]uint16{{0x2000, 0x2400}, {0x2000, 0x2C00}},
		},
		{
			name:   "single upper",
			mode:   cartridge.MirrorSingleScreen1,
			shared: [][2]uint16{{0x2400, 0x2800}},
		},
		{
			name:  "four screen",
			mode:  cartridge.MirrorFourScreen,
			apart: [][2]uint16{{0x2000, 0x2400}, {0x2800, 0x2C00}, {0x2000, 0x2C00}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &MockCartridge{mirror: tt.mode}
			pm := NewPPUMemory(cart)

			for _, p := range tt.shared {
				pm.Write(p[0]+5, 0xA5)
				if v := pm.Read(p[1] + 5); v != 0xA5 {
					t.Errorf("$%04X should alias $%04X, read 0x%02X", p[1], p[0], v)
				}
				pm.Write(p[0]+5, 0)
			}
			for _, p := range tt.apart {
				pm.Write(p[0]+7, 0x5A)
				if v := pm.Read(p[1] + 7); v == 0x5A {
					t.Errorf("$%04X should not alias $%04X", p[1], p[0])
				}
				pm.Write(p[0]+7, 0)
			}
		})
	}
}

func TestPPUMemory_MirroringFollowsCartridge(t *testing.T) {
	cart := &MockCartridge{mirror: cartridge.MirrorVertical}
	pm := NewPPUMemory(cart)

	pm.Write(0x2000, 0x11)
	if pm.Read(0x2400) == 0x11 {
		t.Fatal("Vertical mirroring should keep $2400 separate")
	}
	cart.mirror = cartridge.MirrorSingleScreen0
	if pm.Read(0x2400) != 0x11 {
		t.Error("Mirroring change should take effect on the next access")
	}
}

func TestPPUMemory_NametableUpperMirror(t *testing.T) {
	pm := NewPPUMemory(&MockCartridge{})
	pm.Write(0x2123, 0x42)
	if v := pm.Read(0x3123); v != 0x42 {
		t.Errorf("Expected $3123 to mirror $2123, got 0x%02X", v)
	}
}

func TestPPUMemory_PaletteAliases(t *testing.T) {
	pm := NewPPUMemory(&MockCartridge{})

	for _, a := range []uint16{0x3F10, 0x3F14, 0x3F18, 0x3F1C} {
		pm.Write(a, 0x2A)
		if v := pm.Read(a - 0x10); v != 0x2A {
			t.Errorf("$%04X should alias $%04X, got 0x%02X", a, a-0x10, v)
		}
	}

	pm.Write(0x3F11, 0x01)
	pm.Write(0x3F01, 0x02)
	if pm.Read(0x3F11) != 0x01 {
		t.Error("$3F11 must not alias $3F01")
	}
	if pm.Read(0x3F21) != 0x02 {
		t.Error("$3F21 should mirror $3F01")
	}
}

func TestPPUMemory_PatternTablesGoToCartridge(t *testing.T) {
	cart := &MockCartridge{}
	pm := NewPPUMemory(cart)
	pm.Write(0x1234, 0x77)
	if cart.chrData[0x1234] != 0x77 {
		t.Error("Pattern table write should reach CHR")
	}
	if pm.Read(0x5234) != 0x77 {
		t.Error("Address should be masked to 14 bits")
	}
}
