package ppu

// renderDot runs the fetch pipeline for one dot of the pre-render or a
// visible scanline and, on visible dots, emits a pixel.
func (p *PPU) renderDot(visibleLine bool) {
	if !p.renderingEnabled() {
		if visibleLine && p.cycle >= 1 && p.cycle <= ScreenWidth {
			p.back[p.scanline*ScreenWidth+p.cycle-1] = p.backdrop()
		}
		return
	}

	fetchDot := (p.cycle >= 2 && p.cycle <= 257) || (p.cycle >= 321 && p.cycle <= 337)
	if fetchDot {
		p.shiftBackground()
		switch (p.cycle - 1) % 8 {
		case 0:
			p.loadBackground()
			p.ntByte = p.memory.Read(0x2000 | p.v&0x0FFF)
		case 2:
			p.fetchAttribute()
		case 4:
			p.bgLo = p.memory.Read(p.patternAddr())
		case 6:
			p.bgHi = p.memory.Read(p.patternAddr() + 8)
		case 7:
			p.incrementX()
		}
	}

	switch p.cycle {
	case 256:
		p.incrementY()
	case 257:
		p.copyX()
		if visibleLine {
			p.evaluateSprites()
		} else {
			p.spriteCount = 0
			p.sprite0Line = false
		}
	case 338, 340:
		// Unused nametable fetches
		p.ntByte = p.memory.Read(0x2000 | p.v&0x0FFF)
	}

	if p.scanline == preRenderLine && p.cycle >= 280 && p.cycle <= 304 {
		p.copyY()
	}

	if visibleLine && p.cycle >= 1 && p.cycle <= ScreenWidth {
		p.renderPixel(p.cycle - 1)
	}
}

// backdrop is the color shown while rendering is off: palette entry 0, or
// the entry v points at when v is inside palette space.
func (p *PPU) backdrop() uint32 {
	address := uint16(0x3F00)
	if p.v&0x3FFF >= 0x3F00 {
		address = p.v & 0x3FFF
	}
	return p.color(p.memory.Read(address))
}

func (p *PPU) color(index uint8) uint32 {
	if p.ppuMask&maskGreyscale != 0 {
		index &= 0x30
	}
	return NESColorToRGB(index & 0x3F)
}

func (p *PPU) patternAddr() uint16 {
	table := uint16(0)
	if p.ppuCtrl&ctrlBgTable != 0 {
		table = 0x1000
	}
	return table + uint16(p.ntByte)*16 + (p.v>>12)&7
}

// fetchAttribute picks the 2-bit palette of the current tile's quadrant.
func (p *PPU) fetchAttribute() {
	address := 0x23C0 | p.v&0x0C00 | (p.v>>4)&0x38 | (p.v>>2)&0x07
	shift := ((p.v >> 4) & 4) | (p.v & 2)
	p.atByte = (p.memory.Read(address) >> shift) & 3
}

// loadBackground moves the latched tile into the low byte of the shifters.
func (p *PPU) loadBackground() {
	p.bgShiftLo = p.bgShiftLo&0xFF00 | uint16(p.bgLo)
	p.bgShiftHi = p.bgShiftHi&0xFF00 | uint16(p.bgHi)
	p.attrShiftLo &= 0xFF00
	p.attrShiftHi &= 0xFF00
	if p.atByte&1 != 0 {
		p.attrShiftLo |= 0x00FF
	}
	if p.atByte&2 != 0 {
		p.attrShiftHi |= 0x00FF
	}
}

func (p *PPU) shiftBackground() {
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.attrShiftLo <<= 1
	p.attrShiftHi <<= 1
}

// backgroundPixel returns the 2-bit pattern value and palette at screen x.
func (p *PPU) backgroundPixel(x int) (pixel, palette uint8) {
	if p.ppuMask&maskShowBg == 0 || (x < 8 && p.ppuMask&maskBgLeft == 0) {
		return 0, 0
	}
	bit := uint16(0x8000) >> p.x
	if p.bgShiftLo&bit != 0 {
		pixel |= 1
	}
	if p.bgShiftHi&bit != 0 {
		pixel |= 2
	}
	if p.attrShiftLo&bit != 0 {
		palette |= 1
	}
	if p.attrShiftHi&bit != 0 {
		palette |= 2
	}
	return pixel, palette
}

// spritePixel returns the first opaque sprite pixel at screen x, in OAM
// order.
func (p *PPU) spritePixel(x int) (pixel uint8, sprite *lineSprite, slot int) {
	if p.ppuMask&maskShowSprites == 0 || (x < 8 && p.ppuMask&maskSpriteLeft == 0) {
		return 0, nil, -1
	}
	for i := 0; i < p.spriteCount; i++ {
		s := &p.sprites[i]
		offset := x - int(s.x)
		if offset < 0 || offset > 7 {
			continue
		}
		shift := 7 - uint(offset)
		value := (s.lo>>shift)&1 | ((s.hi>>shift)&1)<<1
		if value != 0 {
			return value, s, i
		}
	}
	return 0, nil, -1
}

func (p *PPU) renderPixel(x int) {
	bg, bgPalette := p.backgroundPixel(x)
	sp, sprite, slot := p.spritePixel(x)

	var address uint16
	switch {
	case bg == 0 && sp == 0:
		address = 0x3F00
	case bg == 0:
		address = 0x3F10 + uint16(sprite.palette)*4 + uint16(sp)
	case sp == 0:
		address = 0x3F00 + uint16(bgPalette)*4 + uint16(bg)
	default:
		if slot == 0 && p.sprite0Line && x != 255 {
			p.ppuStatus |= statusSprite0Hit
		}
		if sprite.behindBg {
			address = 0x3F00 + uint16(bgPalette)*4 + uint16(bg)
		} else {
			address = 0x3F10 + uint16(sprite.palette)*4 + uint16(sp)
		}
	}
	p.back[p.scanline*ScreenWidth+x] = p.color(p.memory.Read(address))
}

// evaluateSprites selects the sprites for the next scanline and fetches
// their pattern rows. Once eight are found the scan continues with the
// hardware's broken indexing, which steps the byte offset along with the
// sprite index and so tests tile, attribute and X bytes as Y coordinates.
func (p *PPU) evaluateSprites() {
	height := 8
	if p.ppuCtrl&ctrlSpriteSize16 != 0 {
		height = 16
	}
	inRange := func(y uint8) bool {
		row := p.scanline - int(y)
		return row >= 0 && row < height
	}

	p.spriteCount = 0
	p.sprite0Line = false

	n := 0
	for ; n < 64 && p.spriteCount < 8; n++ {
		y := p.oam[n*4]
		if !inRange(y) {
			continue
		}
		if n == 0 {
			p.sprite0Line = true
		}
		p.sprites[p.spriteCount] = p.fetchSprite(n, p.scanline-int(y), height)
		p.spriteCount++
	}

	for m := 0; n < 64; n++ {
		if inRange(p.oam[n*4+m]) {
			p.ppuStatus |= statusOverflow
			break
		}
		m = (m + 1) & 3
	}
}

func (p *PPU) fetchSprite(index, row, height int) lineSprite {
	tile := p.oam[index*4+1]
	attr := p.oam[index*4+2]

	if attr&0x80 != 0 {
		row = height - 1 - row
	}

	var address uint16
	if height == 16 {
		table := uint16(tile&1) * 0x1000
		tile &= 0xFE
		if row >= 8 {
			tile++
			row -= 8
		}
		address = table + uint16(tile)*16 + uint16(row)
	} else {
		table := uint16(0)
		if p.ppuCtrl&ctrlSpriteTable != 0 {
			table = 0x1000
		}
		address = table + uint16(tile)*16 + uint16(row)
	}

	lo := p.memory.Read(address)
	hi := p.memory.Read(address + 8)
	if attr&0x40 != 0 {
		lo = reverseBits(lo)
		hi = reverseBits(hi)
	}
	return lineSprite{
		x:        p.oam[index*4+3],
		lo:       lo,
		hi:       hi,
		palette:  attr & 3,
		behindBg: attr&0x20 != 0,
	}
}

func reverseBits(b uint8) uint8 {
	b = b&0xF0>>4 | b&0x0F<<4
	b = b&0xCC>>2 | b&0x33<<2
	b = b&0xAA>>1 | b&0x55<<1
	return b
}
