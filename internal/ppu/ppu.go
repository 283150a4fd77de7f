// Package ppu implements the Picture Processing Unit for the NES.
package ppu

// MemoryInterface is the PPU's 14-bit address space: pattern tables,
// nametables and palette RAM.
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

const (
	// PPUCTRL bits
	ctrlNametable    = 0x03
	ctrlIncrement32  = 0x04
	ctrlSpriteTable  = 0x08
	ctrlBgTable      = 0x10
	ctrlSpriteSize16 = 0x20
	ctrlNMIEnable    = 0x80
	// PPUMASK bits
	maskGreyscale   = 0x01
	maskBgLeft      = 0x02
	maskSpriteLeft  = 0x04
	maskShowBg      = 0x08
	maskShowSprites = 0x10
	// PPUSTATUS bits
	statusOverflow   = 0x20
	statusSprite0Hit = 0x40
	statusVBlank     = 0x80

	// ScreenWidth and ScreenHeight are the visible frame dimensions.
	ScreenWidth  = 256
	ScreenHeight = 240

	lastDot        = 340
	preRenderLine  = -1
	postRenderLine = 240
	vblankLine     = 241
	lastLine       = 260
)

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	// CPU-visible registers
	ppuCtrl   uint8 // $2000
	ppuMask   uint8 // $2001
	ppuStatus uint8 // $2002
	oamAddr   uint8 // $2003

	// Loopy registers
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address
	x uint8  // fine X scroll (3 bits)
	w bool   // first/second write toggle

	memory MemoryInterface

	// Timing
	scanline   int // -1 (pre-render) to 260
	cycle      int // dot, 0 to 340
	frameCount uint64
	oddFrame   bool
	cycleCount uint64

	readBuffer  uint8 // $2007 read-behind buffer
	openBus     uint8 // last value written to or read from a port
	suppressVBL bool  // $2002 was read the dot before VBlank

	nmiPending    bool
	frameComplete bool

	// Background pipeline latches and shifters
	ntByte      uint8
	atByte      uint8
	bgLo        uint8
	bgHi        uint8
	bgShiftLo   uint16
	bgShiftHi   uint16
	attrShiftLo uint16
	attrShiftHi uint16

	// Sprites
	oam         [256]uint8
	sprites     [8]lineSprite
	spriteCount int
	sprite0Line bool // sprite 0 is among this line's sprites

	// back is drawn into while front holds the last finished frame
	back  [ScreenWidth * ScreenHeight]uint32
	front [ScreenWidth * ScreenHeight]uint32
}

// lineSprite is a sprite selected for the current scanline with its
// pattern row already fetched and flipped.
type lineSprite struct {
	x        uint8
	lo, hi   uint8
	palette  uint8
	behindBg bool
}

// New creates a PPU over the given memory in its power-up state.
func New(mem MemoryInterface) *PPU {
	p := &PPU{memory: mem}
	p.Reset()
	return p
}

// Reset returns the PPU to its power-up state: registers cleared and the
// counters at the start of scanline 0.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false

	p.scanline = 0
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.cycleCount = 0

	p.readBuffer = 0
	p.openBus = 0
	p.suppressVBL = false
	p.nmiPending = false
	p.frameComplete = false
	p.spriteCount = 0
	p.sprite0Line = false
}

// ReadRegister reads from a PPU register (CPU $2000-$2007)
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address & 7 {
	case 2: // PPUSTATUS
		status := p.ppuStatus&0xE0 | p.openBus&0x1F
		p.ppuStatus &^= statusVBlank
		p.w = false
		// Reading one dot before VBlank starts hides the flag for this
		// frame and cancels the NMI.
		if p.scanline == vblankLine && p.cycle == 1 {
			p.suppressVBL = true
		}
		p.openBus = status
		return status
	case 4: // OAMDATA
		p.openBus = p.oam[p.oamAddr]
		return p.openBus
	case 7: // PPUDATA
		p.openBus = p.readData()
		return p.openBus
	default:
		// Write-only ports return the latch
		return p.openBus
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007)
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.openBus = value
	switch address & 7 {
	case 0: // PPUCTRL
		wasEnabled := p.ppuCtrl&ctrlNMIEnable != 0
		p.ppuCtrl = value
		p.t = p.t&0xF3FF | uint16(value&ctrlNametable)<<10
		// Enabling NMI while VBlank is already flagged fires it immediately
		if !wasEnabled && value&ctrlNMIEnable != 0 && p.ppuStatus&statusVBlank != 0 {
			p.nmiPending = true
		}
	case 1: // PPUMASK
		p.ppuMask = value
	case 2: // PPUSTATUS is read only
	case 3: // OAMADDR
		p.oamAddr = value
	case 4: // OAMDATA
		p.WriteOAM(p.oamAddr, value)
		p.oamAddr++
	case 5: // PPUSCROLL
		p.writeScroll(value)
	case 6: // PPUADDR
		p.writeAddr(value)
	case 7: // PPUDATA
		p.memory.Write(p.v&0x3FFF, value)
		p.incrementAddr()
	}
}

// WriteOAM stores one OAM byte. Attribute bytes have no bits 2-4.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	if address&3 == 2 {
		value &= 0xE3
	}
	p.oam[address] = value
}

// writeScroll handles writes to PPUSCROLL ($2005)
func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = p.t&0xFFE0 | uint16(value)>>3
		p.x = value & 0x07
	} else {
		p.t = p.t&0x8FFF | uint16(value&0x07)<<12
		p.t = p.t&0xFC1F | uint16(value&0xF8)<<2
	}
	p.w = !p.w
}

// writeAddr handles writes to PPUADDR ($2006)
func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = p.t&0x80FF | uint16(value&0x3F)<<8
	} else {
		p.t = p.t&0xFF00 | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// readData handles reads from PPUDATA ($2007). Palette reads bypass the
// buffer, which is refilled from the nametable underneath instead.
func (p *PPU) readData() uint8 {
	address := p.v & 0x3FFF
	var data uint8
	if address >= 0x3F00 {
		data = p.memory.Read(address)
		p.readBuffer = p.memory.Read(address - 0x1000)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(address)
	}
	p.incrementAddr()
	return data
}

// incrementAddr advances v after a $2007 access. While rendering, the
// access instead bumps coarse X and Y at once.
func (p *PPU) incrementAddr() {
	if p.renderingEnabled() && p.scanline < postRenderLine {
		p.incrementX()
		p.incrementY()
		return
	}
	if p.ppuCtrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

func (p *PPU) renderingEnabled() bool {
	return p.ppuMask&(maskShowBg|maskShowSprites) != 0
}

// Step advances the PPU by exactly one dot.
func (p *PPU) Step() {
	p.cycleCount++

	visibleLine := p.scanline >= 0 && p.scanline < postRenderLine
	if visibleLine || p.scanline == preRenderLine {
		p.renderDot(visibleLine)
	}

	switch {
	case p.scanline == vblankLine && p.cycle == 1:
		if !p.suppressVBL {
			p.ppuStatus |= statusVBlank
			if p.ppuCtrl&ctrlNMIEnable != 0 {
				p.nmiPending = true
			}
		}
		p.suppressVBL = false
	case p.scanline == preRenderLine && p.cycle == 1:
		p.ppuStatus &^= statusVBlank | statusSprite0Hit | statusOverflow
	}

	p.advance()
}

// advance moves the dot and scanline counters, including the odd-frame
// skip of the pre-render line's last dot.
func (p *PPU) advance() {
	if p.scanline == preRenderLine && p.cycle == lastDot-1 && p.oddFrame && p.renderingEnabled() {
		p.cycle = lastDot
	}

	p.cycle++
	if p.cycle <= lastDot {
		return
	}
	p.cycle = 0
	p.scanline++

	switch p.scanline {
	case postRenderLine:
		p.front = p.back
		p.frameComplete = true
	case lastLine + 1:
		p.scanline = preRenderLine
		p.frameCount++
		p.oddFrame = !p.oddFrame
	}
}

// NMIPending reports whether the PPU has raised an NMI that the
// orchestrator has not yet delivered.
func (p *PPU) NMIPending() bool {
	return p.nmiPending
}

// AcknowledgeNMI clears the pending NMI once it has been handed to the CPU.
func (p *PPU) AcknowledgeNMI() {
	p.nmiPending = false
}

// FrameComplete reports whether a frame has finished since the last call.
func (p *PPU) FrameComplete() bool {
	done := p.frameComplete
	p.frameComplete = false
	return done
}

// FrameBuffer returns a copy of the last completed frame as 0x00RRGGBB pixels.
func (p *PPU) FrameBuffer() [ScreenWidth * ScreenHeight]uint32 {
	return p.front
}

// State is a snapshot of the PPU's timing and register state.
type State struct {
	Scanline   int
	Cycle      int
	Frame      uint64
	V, T       uint16
	X          uint8
	W          bool
	Ctrl       uint8
	Mask       uint8
	Status     uint8
	OAMAddr    uint8
	NMIPending bool
}

func (p *PPU) State() State {
	return State{
		Scanline:   p.scanline,
		Cycle:      p.cycle,
		Frame:      p.frameCount,
		V:          p.v,
		T:          p.t,
		X:          p.x,
		W:          p.w,
		Ctrl:       p.ppuCtrl,
		Mask:       p.ppuMask,
		Status:     p.ppuStatus,
		OAMAddr:    p.oamAddr,
		NMIPending: p.nmiPending,
	}
}

// ReadOAM returns one byte of sprite memory without side effects
func (p *PPU) ReadOAM(address uint8) uint8 {
	return p.oam[address]
}

// GetScanline returns the current scanline
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current dot
func (p *PPU) GetCycle() int {
	return p.cycle
}

// GetFrameCount returns the number of frames completed
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// GetCycleCount returns the total PPU dot count
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}
