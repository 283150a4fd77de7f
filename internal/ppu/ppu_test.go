package ppu

import (
	"testing"

	"cyclenes/internal/cartridge"
	"cyclenes/internal/memory"
)

// MockCHR implements memory.CHRInterface with 8KB of pattern data
type MockCHR struct {
	chrData [0x2000]uint8
	mirror  cartridge.MirrorMode
}

func (m *MockCHR) ReadCHR(address uint16) uint8 {
	return m.chrData[address&0x1FFF]
}

func (m *MockCHR) WriteCHR(address uint16, value uint8) {
	m.chrData[address&0x1FFF] = value
}

func (m *MockCHR) Mirroring() cartridge.MirrorMode {
	return m.mirror
}

// SetSolidTile makes every pixel of a tile use color value 1
func (m *MockCHR) SetSolidTile(table uint16, tile uint8) {
	base := table + uint16(tile)*16
	for row := uint16(0); row < 8; row++ {
		m.chrData[base+row] = 0xFF
		m.chrData[base+row+8] = 0x00
	}
}

func newTestPPU() (*PPU, *MockCHR) {
	chr := &MockCHR{mirror: cartridge.MirrorHorizontal}
	return New(memory.NewPPUMemory(chr)), chr
}

// stepTo steps until the PPU is about to process the given dot
func stepTo(t *testing.T, p *PPU, scanline, cycle int) {
	t.Helper()
	for i := 0; i < 200000; i++ {
		if p.scanline == scanline && p.cycle == cycle {
			return
		}
		p.Step()
	}
	t.Fatalf("never reached scanline %d cycle %d", scanline, cycle)
}

// runFrame steps until a frame completes and returns the dots taken
func runFrame(t *testing.T, p *PPU) int {
	t.Helper()
	for steps := 1; steps < 200000; steps++ {
		p.Step()
		if p.FrameComplete() {
			return steps
		}
	}
	t.Fatal("frame never completed")
	return 0
}

func setAddr(p *PPU, address uint16) {
	p.ReadRegister(0x2002)
	p.WriteRegister(0x2006, uint8(address>>8))
	p.WriteRegister(0x2006, uint8(address))
}

func writeVRAM(p *PPU, address uint16, values ...uint8) {
	setAddr(p, address)
	for _, v := range values {
		p.WriteRegister(0x2007, v)
	}
}

// fillNametable points every tile of nametable 0 at tile and leaves v at 0
func fillNametable(p *PPU, tile uint8) {
	setAddr(p, 0x2000)
	for i := 0; i < 960; i++ {
		p.WriteRegister(0x2007, tile)
	}
	setAddr(p, 0x0000)
}

func clearOAM(p *PPU) {
	for i := 0; i < 256; i++ {
		p.WriteOAM(uint8(i), 0xFF)
	}
}

func setSprite(p *PPU, index int, y, tile, attr, x uint8) {
	base := uint8(index * 4)
	p.WriteOAM(base, y)
	p.WriteOAM(base+1, tile)
	p.WriteOAM(base+2, attr)
	p.WriteOAM(base+3, x)
}

func TestPPU_PowerUp(t *testing.T) {
	p, _ := newTestPPU()

	s := p.State()
	if s.Scanline != 0 || s.Cycle != 0 || s.Frame != 0 {
		t.Errorf("Expected power-up at 0,0 frame 0, got %d,%d frame %d", s.Scanline, s.Cycle, s.Frame)
	}
	if s.Status != 0 || s.Ctrl != 0 || s.Mask != 0 {
		t.Errorf("Expected cleared registers, got %+v", s)
	}

	for i := 0; i < 21; i++ {
		p.Step()
	}
	if p.GetScanline() != 0 || p.GetCycle() != 21 || p.GetCycleCount() != 21 {
		t.Errorf("Expected 0,21 after 21 dots, got %d,%d", p.GetScanline(), p.GetCycle())
	}
}

func TestPPU_VBlankTiming(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x80)

	stepTo(t, p, 241, 1)
	if p.State().Status&statusVBlank != 0 {
		t.Fatal("VBlank set before 241/1 was processed")
	}
	p.Step()
	if p.State().Status&statusVBlank == 0 {
		t.Fatal("VBlank not set at 241/1")
	}
	if !p.NMIPending() {
		t.Fatal("NMI not raised with NMI enabled")
	}
	p.AcknowledgeNMI()
	if p.NMIPending() {
		t.Error("AcknowledgeNMI did not clear the pending NMI")
	}

	stepTo(t, p, -1, 1)
	if p.State().Status&statusVBlank == 0 {
		t.Fatal("VBlank cleared before pre-render dot 1")
	}
	p.Step()
	if p.State().Status&statusVBlank != 0 {
		t.Error("VBlank not cleared at pre-render dot 1")
	}
}

func TestPPU_VBlankSetOncePerFrame(t *testing.T) {
	p, _ := newTestPPU()

	rises := 0
	was := false
	for frame := 0; frame < 3; frame++ {
		for i := 0; i < 341*262; i++ {
			p.Step()
			now := p.State().Status&statusVBlank != 0
			if now && !was {
				rises++
			}
			was = now
		}
	}
	if rises != 3 {
		t.Errorf("Expected VBlank to rise once per frame (3), got %d", rises)
	}
}

func TestPPU_StatusReadClearsVBlankOnce(t *testing.T) {
	p, _ := newTestPPU()
	stepTo(t, p, 250, 0)

	p.WriteRegister(0x2005, 0x10) // sets w
	if status := p.ReadRegister(0x2002); status&statusVBlank == 0 {
		t.Fatalf("Expected VBlank in status, got 0x%02X", status)
	}
	if p.State().W {
		t.Error("Status read must reset w")
	}
	if status := p.ReadRegister(0x2002); status&statusVBlank != 0 {
		t.Errorf("Second read should see VBlank clear, got 0x%02X", status)
	}

	// Nothing sets it again before the pre-render clear
	for p.scanline != 0 {
		p.Step()
		if p.State().Status&statusVBlank != 0 {
			t.Fatalf("VBlank reappeared at %d,%d", p.scanline, p.cycle)
		}
	}
}

func TestPPU_StatusReadBeforeVBlankSuppressesIt(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x80)

	stepTo(t, p, 241, 1)
	if status := p.ReadRegister(0x2002); status&statusVBlank != 0 {
		t.Fatalf("Expected VBlank clear, got 0x%02X", status)
	}
	p.Step()
	if p.State().Status&statusVBlank != 0 {
		t.Error("VBlank should be suppressed for this frame")
	}
	if p.NMIPending() {
		t.Error("NMI should be suppressed")
	}

	// The next frame is unaffected
	stepTo(t, p, 0, 0)
	stepTo(t, p, 241, 2)
	if p.State().Status&statusVBlank == 0 {
		t.Error("VBlank should be set in the following frame")
	}
}

func TestPPU_NMIEnableDuringVBlank(t *testing.T) {
	p, _ := newTestPPU()
	stepTo(t, p, 245, 0)

	if p.NMIPending() {
		t.Fatal("NMI pending with NMI disabled")
	}
	p.WriteRegister(0x2000, 0x80)
	if !p.NMIPending() {
		t.Error("Enabling NMI during VBlank should raise it")
	}

	// Re-writing with NMI still enabled is not a new edge
	p.AcknowledgeNMI()
	p.WriteRegister(0x2000, 0x80)
	if p.NMIPending() {
		t.Error("Writing $2000 with NMI already enabled should not raise it again")
	}
}

func TestPPU_LoopyRegisterWrites(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2000, 0x00)
	p.ReadRegister(0x2002)

	p.WriteRegister(0x2005, 0x7D)
	if s := p.State(); s.T != 0x000F || s.X != 5 || !s.W {
		t.Errorf("After first $2005: t=0x%04X x=%d w=%v", s.T, s.X, s.W)
	}
	p.WriteRegister(0x2005, 0x5E)
	if s := p.State(); s.T != 0x616F || s.W {
		t.Errorf("After second $2005: t=0x%04X w=%v", s.T, s.W)
	}
	p.WriteRegister(0x2006, 0x3D)
	if s := p.State(); s.T != 0x3D6F || !s.W {
		t.Errorf("After first $2006: t=0x%04X w=%v", s.T, s.W)
	}
	p.WriteRegister(0x2006, 0xF0)
	if s := p.State(); s.T != 0x3DF0 || s.V != 0x3DF0 || s.W {
		t.Errorf("After second $2006: t=0x%04X v=0x%04X w=%v", s.T, s.V, s.W)
	}

	// $2000 nametable bits land in t
	p.WriteRegister(0x2000, 0x03)
	if s := p.State(); s.T&0x0C00 != 0x0C00 {
		t.Errorf("Expected nametable bits in t, got 0x%04X", s.T)
	}
}

func TestPPU_DataPortBufferedRead(t *testing.T) {
	p, _ := newTestPPU()

	writeVRAM(p, 0x2000, 0x11, 0x22, 0x33)
	setAddr(p, 0x2000)

	if got := p.ReadRegister(0x2007); got != 0x00 {
		t.Errorf("First read should return the stale buffer, got 0x%02X", got)
	}
	if got := p.ReadRegister(0x2007); got != 0x11 {
		t.Errorf("Expected 0x11, got 0x%02X", got)
	}
	if got := p.ReadRegister(0x2007); got != 0x22 {
		t.Errorf("Expected 0x22, got 0x%02X", got)
	}
}

func TestPPU_DataPortIncrement(t *testing.T) {
	p, _ := newTestPPU()

	setAddr(p, 0x2000)
	p.WriteRegister(0x2007, 0x01)
	if v := p.State().V; v != 0x2001 {
		t.Errorf("Expected v=0x2001 with increment 1, got 0x%04X", v)
	}

	p.WriteRegister(0x2000, 0x04)
	p.WriteRegister(0x2007, 0x01)
	if v := p.State().V; v != 0x2021 {
		t.Errorf("Expected v=0x2021 with increment 32, got 0x%04X", v)
	}
	p.ReadRegister(0x2007)
	if v := p.State().V; v != 0x2041 {
		t.Errorf("Reads increment too, expected 0x2041, got 0x%04X", v)
	}
}

func TestPPU_PaletteReadUnbuffered(t *testing.T) {
	p, _ := newTestPPU()

	writeVRAM(p, 0x2F01, 0x77)
	writeVRAM(p, 0x3F01, 0x2A)
	setAddr(p, 0x3F01)

	if got := p.ReadRegister(0x2007); got != 0x2A {
		t.Errorf("Palette read should be immediate, got 0x%02X", got)
	}
	// The buffer now holds the nametable byte underneath the palette
	setAddr(p, 0x2000)
	if got := p.ReadRegister(0x2007); got != 0x77 {
		t.Errorf("Expected buffer loaded from $2F01 (0x77), got 0x%02X", got)
	}
}

func TestPPU_OAMAccess(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2003, 0x02)
	p.WriteRegister(0x2004, 0xFF)
	p.WriteRegister(0x2004, 0x40)

	if s := p.State(); s.OAMAddr != 0x04 {
		t.Errorf("Expected OAMADDR 0x04 after two writes, got 0x%02X", s.OAMAddr)
	}
	p.WriteRegister(0x2003, 0x02)
	if got := p.ReadRegister(0x2004); got != 0xE3 {
		t.Errorf("Attribute byte should read back 0xE3, got 0x%02X", got)
	}
	if got := p.ReadOAM(0x03); got != 0x40 {
		t.Errorf("Expected X byte 0x40, got 0x%02X", got)
	}
}

func TestPPU_OpenBusLatch(t *testing.T) {
	p, _ := newTestPPU()

	p.WriteRegister(0x2000, 0x5A)
	if got := p.ReadRegister(0x2001); got != 0x5A {
		t.Errorf("Write-only port should return the latch, got 0x%02X", got)
	}
	if got := p.ReadRegister(0x2002); got&0x1F != 0x1A {
		t.Errorf("Status low bits should come from the latch, got 0x%02X", got)
	}
	// Ports mirror every 8 bytes
	p.WriteRegister(0x3FF9, 0x18)
	if p.State().Mask != 0x18 {
		t.Errorf("Expected $3FF9 to reach PPUMASK, got 0x%02X", p.State().Mask)
	}
}

func TestPPU_FrameLength(t *testing.T) {
	t.Run("rendering off", func(t *testing.T) {
		p, _ := newTestPPU()
		if got := runFrame(t, p); got != 240*341 {
			t.Errorf("First frame from power-up: expected %d dots, got %d", 240*341, got)
		}
		for i := 0; i < 2; i++ {
			if got := runFrame(t, p); got != 262*341 {
				t.Errorf("Frame %d: expected %d dots, got %d", i, 262*341, got)
			}
		}
	})

	t.Run("rendering on skips a dot on odd frames", func(t *testing.T) {
		p, _ := newTestPPU()
		p.WriteRegister(0x2001, 0x08)
		runFrame(t, p)
		if got := runFrame(t, p); got != 262*341-1 {
			t.Errorf("Odd frame: expected %d dots, got %d", 262*341-1, got)
		}
		if got := runFrame(t, p); got != 262*341 {
			t.Errorf("Even frame: expected %d dots, got %d", 262*341, got)
		}
	})
}

func TestPPU_FrameCompleteIsEdge(t *testing.T) {
	p, _ := newTestPPU()
	runFrame(t, p)

	if p.scanline != 240 || p.cycle != 0 {
		t.Errorf("Expected frame completion at 240/0, got %d/%d", p.scanline, p.cycle)
	}
	if p.FrameComplete() {
		t.Error("FrameComplete should clear once read")
	}
}

func TestPPU_BackdropAndFrameHandoff(t *testing.T) {
	p, _ := newTestPPU()
	writeVRAM(p, 0x3F00, 0x21)
	setAddr(p, 0x0000)

	runFrame(t, p)
	frame := p.FrameBuffer()
	if frame[0] != NESColorToRGB(0x21) || frame[len(frame)-1] != NESColorToRGB(0x21) {
		t.Fatalf("Expected backdrop 0x%06X, got 0x%06X", NESColorToRGB(0x21), frame[0])
	}

	// Drawing the next frame must not touch the handed-off buffer
	writeVRAM(p, 0x3F00, 0x16)
	setAddr(p, 0x0000)
	stepTo(t, p, 120, 0)
	if got := p.FrameBuffer()[0]; got != NESColorToRGB(0x21) {
		t.Errorf("Front buffer changed mid-frame: 0x%06X", got)
	}
	runFrame(t, p)
	if got := p.FrameBuffer()[0]; got != NESColorToRGB(0x16) {
		t.Errorf("Expected new backdrop after next frame, got 0x%06X", got)
	}
}

func TestPPU_BackdropFollowsPaletteAddress(t *testing.T) {
	p, _ := newTestPPU()
	writeVRAM(p, 0x3F00, 0x0F, 0x2C)
	setAddr(p, 0x3F01)

	runFrame(t, p)
	if got := p.FrameBuffer()[0]; got != NESColorToRGB(0x2C) {
		t.Errorf("With v in palette space the backdrop is the entry at v, got 0x%06X", got)
	}
}

func TestPPU_BackgroundRendering(t *testing.T) {
	p, chr := newTestPPU()
	chr.SetSolidTile(0, 1)
	writeVRAM(p, 0x3F00, 0x0F, 0x16, 0x00, 0x00, 0x0F, 0x2A)
	writeVRAM(p, 0x23C0, 0x01) // top-left quadrant of the first block uses palette 1
	fillNametable(p, 1)
	p.WriteRegister(0x2001, 0x0A)

	// The first frame from power-up has no pre-render prefetch
	runFrame(t, p)
	runFrame(t, p)
	frame := p.FrameBuffer()

	if got := frame[0]; got != NESColorToRGB(0x2A) {
		t.Errorf("Pixel (0,0): expected palette 1 color 0x%06X, got 0x%06X", NESColorToRGB(0x2A), got)
	}
	if got := frame[100*ScreenWidth+100]; got != NESColorToRGB(0x16) {
		t.Errorf("Pixel (100,100): expected palette 0 color 0x%06X, got 0x%06X", NESColorToRGB(0x16), got)
	}
}

func TestPPU_Sprite0Hit(t *testing.T) {
	tests := []struct {
		name   string
		x      uint8
		mask   uint8
		expect bool
	}{
		{"overlapping opaque pixels", 50, 0x1E, true},
		{"clipped in the left columns", 0, 0x18, false},
		{"sprites disabled", 50, 0x0A, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, chr := newTestPPU()
			chr.SetSolidTile(0, 1)
			fillNametable(p, 1)
			clearOAM(p)
			setSprite(p, 0, 30, 1, 0x00, tt.x)
			p.WriteRegister(0x2001, tt.mask)

			stepTo(t, p, 31, 0)
			if p.State().Status&statusSprite0Hit != 0 {
				t.Fatal("Sprite 0 hit set before the sprite's first line")
			}
			stepTo(t, p, 32, 0)
			hit := p.State().Status&statusSprite0Hit != 0
			if hit != tt.expect {
				t.Errorf("Expected sprite 0 hit=%v, got %v", tt.expect, hit)
			}

			if tt.expect {
				stepTo(t, p, -1, 2)
				if p.State().Status&statusSprite0Hit != 0 {
					t.Error("Sprite 0 hit should clear at pre-render dot 1")
				}
			}
		})
	}
}

func TestPPU_SpriteOverflow(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(p *PPU)
		line   int
		expect bool
	}{
		{
			name: "eight sprites",
			setup: func(p *PPU) {
				for i := 0; i < 8; i++ {
					setSprite(p, i, 10, 0, 0, uint8(i*8))
				}
			},
			line: 12, expect: false,
		},
		{
			name: "nine sprites",
			setup: func(p *PPU) {
				for i := 0; i < 9; i++ {
					setSprite(p, i, 10, 0, 0, uint8(i*8))
				}
			},
			line: 12, expect: true,
		},
		{
			// After eight hits the scan reads sprite 9's tile byte as a Y
			name: "false positive from diagonal scan",
			setup: func(p *PPU) {
				for i := 0; i < 8; i++ {
					setSprite(p, i, 10, 0, 0, uint8(i*8))
				}
				setSprite(p, 8, 200, 0, 0, 0)
				setSprite(p, 9, 200, 12, 0, 0)
			},
			line: 12, expect: true,
		},
		{
			name: "false negative from diagonal scan",
			setup: func(p *PPU) {
				for i := 0; i < 8; i++ {
					setSprite(p, i, 10, 0, 0, uint8(i*8))
				}
				setSprite(p, 9, 10, 0xFF, 0xFF, 0xFF)
			},
			line: 12, expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPPU()
			clearOAM(p)
			tt.setup(p)
			p.WriteRegister(0x2001, 0x10)

			stepTo(t, p, tt.line, 258)
			overflow := p.State().Status&statusOverflow != 0
			if overflow != tt.expect {
				t.Errorf("Expected overflow=%v, got %v", tt.expect, overflow)
			}
		})
	}
}

func TestPPU_OverflowNeedsRendering(t *testing.T) {
	p, _ := newTestPPU()
	clearOAM(p)
	for i := 0; i < 9; i++ {
		setSprite(p, i, 10, 0, 0, 0)
	}

	stepTo(t, p, 20, 0)
	if p.State().Status&statusOverflow != 0 {
		t.Error("Sprite evaluation should not run with rendering disabled")
	}
}

func TestPPU_SpriteFlipAndPriority(t *testing.T) {
	p, chr := newTestPPU()
	// Tile 2 has only its leftmost column set
	for row := 0; row < 8; row++ {
		chr.chrData[0x20+row] = 0x80
	}
	writeVRAM(p, 0x3F00, 0x0F)
	writeVRAM(p, 0x3F11, 0x30)
	setAddr(p, 0x0000)
	clearOAM(p)
	setSprite(p, 0, 20, 2, 0x00, 40) // column at x=40
	setSprite(p, 1, 40, 2, 0x40, 40) // flipped: column at x=47
	setSprite(p, 2, 60, 2, 0x20, 40) // behind a transparent background: still visible
	p.WriteRegister(0x2001, 0x14)

	runFrame(t, p)
	frame := p.FrameBuffer()
	white := NESColorToRGB(0x30)
	backdrop := NESColorToRGB(0x0F)

	checks := []struct {
		x, y int
		want uint32
	}{
		{40, 21, white},
		{41, 21, backdrop},
		{40, 41, backdrop},
		{47, 41, white},
		{40, 61, white},
	}
	for _, c := range checks {
		if got := frame[c.y*ScreenWidth+c.x]; got != c.want {
			t.Errorf("Pixel (%d,%d): expected 0x%06X, got 0x%06X", c.x, c.y, c.want, got)
		}
	}
}

func TestPPU_Greyscale(t *testing.T) {
	p, _ := newTestPPU()
	writeVRAM(p, 0x3F00, 0x16)
	setAddr(p, 0x0000)
	p.WriteRegister(0x2001, maskGreyscale)

	runFrame(t, p)
	if got := p.FrameBuffer()[0]; got != NESColorToRGB(0x10) {
		t.Errorf("Greyscale should mask the color to 0x10, got 0x%06X", got)
	}
}

func TestReverseBits(t *testing.T) {
	cases := map[uint8]uint8{0x80: 0x01, 0x01: 0x80, 0xF0: 0x0F, 0xA5: 0xA5, 0xC1: 0x83}
	for in, want := range cases {
		if got := reverseBits(in); got != want {
			t.Errorf("reverseBits(0x%02X) = 0x%02X, want 0x%02X", in, got, want)
		}
	}
}
