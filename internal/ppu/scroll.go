package ppu

// VRAM address layout: yyy NN YYYYY XXXXX
// (fine Y, nametable, coarse Y, coarse X)

// incrementX moves v to the next tile, wrapping into the horizontally
// adjacent nametable after coarse X 31.
func (p *PPU) incrementX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY moves v down one pixel row. Coarse Y 29 wraps into the
// vertically adjacent nametable; 30 and 31 (attribute rows) wrap to 0
// without switching.
func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = p.v&^0x03E0 | y<<5
}

// copyX restores coarse X and the horizontal nametable bit from t
func (p *PPU) copyX() {
	p.v = p.v&0xFBE0 | p.t&0x041F
}

// copyY restores fine Y, coarse Y and the vertical nametable bit from t
func (p *PPU) copyY() {
	p.v = p.v&0x841F | p.t&0x7BE0
}
