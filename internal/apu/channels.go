package apu

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6,
	160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 8, 48, 6, 96, 4,
	192, 2, 72, 16, 28, 32, 52, 2,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// noisePeriodTable is in CPU cycles (NTSC)
var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160,
	202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// lengthCounter silences a channel after a programmed number of half frames
type lengthCounter struct {
	value   uint8
	halt    bool
	enabled bool
}

func (l *lengthCounter) load(index uint8) {
	if l.enabled {
		l.value = lengthTable[index&0x1F]
	}
}

func (l *lengthCounter) setEnabled(enabled bool) {
	l.enabled = enabled
	if !enabled {
		l.value = 0
	}
}

func (l *lengthCounter) clock() {
	if !l.halt && l.value > 0 {
		l.value--
	}
}

// envelope produces a decaying volume, or a constant one
type envelope struct {
	start    bool
	loop     bool
	constant bool
	volume   uint8 // constant volume, or divider period
	decay    uint8
	divider  uint8
}

func (e *envelope) write(value uint8) {
	e.loop = value&0x20 != 0
	e.constant = value&0x10 != 0
	e.volume = value & 0x0F
}

func (e *envelope) clock() {
	switch {
	case e.start:
		e.start = false
		e.decay = 15
		e.divider = e.volume
	case e.divider == 0:
		e.divider = e.volume
		if e.decay > 0 {
			e.decay--
		} else if e.loop {
			e.decay = 15
		}
	default:
		e.divider--
	}
}

func (e *envelope) output() uint8 {
	if e.constant {
		return e.volume
	}
	return e.decay
}

// pulse is one of the two square wave channels
type pulse struct {
	env    envelope
	length lengthCounter

	duty   uint8
	step   uint8
	period uint16
	timer  uint16

	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepReload  bool
	sweepDivider uint8
	// pulse 1 negates with one's complement
	onesComplement bool
}

func (p *pulse) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		p.duty = value >> 6
		p.env.write(value)
		p.length.halt = p.env.loop
	case 1:
		p.sweepEnabled = value&0x80 != 0
		p.sweepPeriod = (value >> 4) & 0x07
		p.sweepNegate = value&0x08 != 0
		p.sweepShift = value & 0x07
		p.sweepReload = true
	case 2:
		p.period = p.period&0x0700 | uint16(value)
	case 3:
		p.period = p.period&0x00FF | uint16(value&0x07)<<8
		p.length.load(value >> 3)
		p.env.start = true
		p.step = 0
	}
}

func (p *pulse) stepTimer() {
	if p.timer == 0 {
		p.timer = p.period
		p.step = (p.step + 1) & 7
	} else {
		p.timer--
	}
}

func (p *pulse) sweepTarget() uint16 {
	change := p.period >> p.sweepShift
	if !p.sweepNegate {
		return p.period + change
	}
	if p.onesComplement {
		return p.period - change - 1
	}
	return p.period - change
}

func (p *pulse) muted() bool {
	return p.period < 8 || (!p.sweepNegate && p.sweepTarget() > 0x7FF)
}

func (p *pulse) clockSweep() {
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !p.muted() {
		p.period = p.sweepTarget()
	}
	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

func (p *pulse) output() uint8 {
	if p.length.value == 0 || p.muted() || dutyTable[p.duty][p.step] == 0 {
		return 0
	}
	return p.env.output()
}

// triangle is the triangle wave channel
type triangle struct {
	length lengthCounter

	period uint16
	timer  uint16
	step   uint8

	linearLoad   uint8
	linear       uint8
	linearReload bool
	control      bool
}

func (t *triangle) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		t.control = value&0x80 != 0
		t.length.halt = t.control
		t.linearLoad = value & 0x7F
	case 2:
		t.period = t.period&0x0700 | uint16(value)
	case 3:
		t.period = t.period&0x00FF | uint16(value&0x07)<<8
		t.length.load(value >> 3)
		t.linearReload = true
	}
}

func (t *triangle) stepTimer() {
	if t.timer == 0 {
		t.timer = t.period
		if t.length.value > 0 && t.linear > 0 {
			t.step = (t.step + 1) & 0x1F
		}
	} else {
		t.timer--
	}
}

func (t *triangle) clockLinear() {
	if t.linearReload {
		t.linear = t.linearLoad
	} else if t.linear > 0 {
		t.linear--
	}
	if !t.control {
		t.linearReload = false
	}
}

func (t *triangle) output() uint8 {
	// Ultrasonic periods are silenced rather than aliased
	if t.length.value == 0 || t.linear == 0 || t.period < 2 {
		return 0
	}
	return triangleTable[t.step]
}

// noise is the pseudo-random noise channel
type noise struct {
	env    envelope
	length lengthCounter

	shortMode     bool
	period        uint16
	timer         uint16
	shiftRegister uint16
}

func (n *noise) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		n.env.write(value)
		n.length.halt = n.env.loop
	case 2:
		n.shortMode = value&0x80 != 0
		n.period = noisePeriodTable[value&0x0F]
	case 3:
		n.length.load(value >> 3)
		n.env.start = true
	}
}

func (n *noise) stepTimer() {
	if n.timer > 0 {
		n.timer--
		return
	}
	n.timer = n.period

	tap := uint16(1)
	if n.shortMode {
		tap = 6
	}
	feedback := (n.shiftRegister ^ n.shiftRegister>>tap) & 1
	n.shiftRegister = n.shiftRegister>>1 | feedback<<14
}

func (n *noise) output() uint8 {
	if n.length.value == 0 || n.shiftRegister&1 != 0 {
		return 0
	}
	return n.env.output()
}
