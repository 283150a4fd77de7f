package cartridge

// Mapper001 implements MMC1 (mapper 1).
//
// Registers are loaded serially: each write to $8000-$FFFF shifts bit 0 of
// the value into a 5-bit shift register, and the fifth write commits the
// result to the register selected by address bits 14-13:
//
//	$8000-$9FFF control   CPPMM (CHR mode, PRG mode, mirroring)
//	$A000-$BFFF CHR bank 0
//	$C000-$DFFF CHR bank 1
//	$E000-$FFFF PRG bank  (bit 4 disables PRG RAM)
//
// A write with bit 7 set clears the shift register and forces PRG mode 3.
// The chip ignores a write on the cycle immediately following another one;
// the only way a CPU produces that is the double write of a read-modify-write
// instruction, so writes stamped with the same instruction cycle as the
// previous serial write are dropped.
type Mapper001 struct {
	prgSize int
	chrSize int

	shift uint8
	count uint8

	control uint8
	chr0    uint8
	chr1    uint8
	prg     uint8

	lastCycle uint64
	written   bool
}

// NewMapper001 creates a new MMC1 mapper in its power-up state
func NewMapper001(prgSize, chrSize int) *Mapper001 {
	m := &Mapper001{prgSize: prgSize, chrSize: chrSize}
	m.Reset()
	return m
}

func (m *Mapper001) ID() uint8    { return 1 }
func (m *Mapper001) Name() string { return "MMC1" }

// Reset puts the mapper in PRG mode 3 with an empty shift register.
func (m *Mapper001) Reset() {
	m.shift = 0
	m.count = 0
	m.control = 0x0C
	m.chr0 = 0
	m.chr1 = 0
	m.prg = 0
	m.written = false
}

func (m *Mapper001) OnCPUWrite(address uint16, value uint8, cycle uint64) {
	if address < 0x8000 {
		return
	}
	if m.written && cycle == m.lastCycle {
		return
	}
	m.written = true
	m.lastCycle = cycle

	if value&0x80 != 0 {
		m.shift = 0
		m.count = 0
		m.control |= 0x0C
		return
	}

	m.shift = (m.shift >> 1) | ((value & 1) << 4)
	m.count++
	if m.count < 5 {
		return
	}

	switch (address >> 13) & 3 {
	case 0:
		m.control = m.shift
	case 1:
		m.chr0 = m.shift
	case 2:
		m.chr1 = m.shift
	case 3:
		m.prg = m.shift
	}
	m.shift = 0
	m.count = 0
}

func (m *Mapper001) MapPRG(address uint16) (int, bool, error) {
	switch {
	case address >= 0x8000:
		return m.prgOffset(address), false, nil
	case address >= 0x6000:
		if m.prg&0x10 != 0 {
			return 0, false, &MapperViolation{Mapper: m.Name(), Address: address, Op: "access", Reason: "PRG RAM disabled"}
		}
		return int(address - 0x6000), true, nil
	}
	return 0, false, &MapperViolation{Mapper: m.Name(), Address: address, Op: "access", Reason: "unmapped expansion area"}
}

func (m *Mapper001) prgOffset(address uint16) int {
	banks := m.prgSize / 0x4000
	var bank int
	switch (m.control >> 2) & 3 {
	case 0, 1:
		// 32KB at $8000, low bit of the bank number ignored
		bank = int(m.prg&0x0E) + int((address-0x8000)/0x4000)
	case 2:
		if address < 0xC000 {
			bank = 0
		} else {
			bank = int(m.prg & 0x0F)
		}
	case 3:
		if address < 0xC000 {
			bank = int(m.prg & 0x0F)
		} else {
			bank = banks - 1
		}
	}
	return (bank%banks)*0x4000 + int(address&0x3FFF)
}

func (m *Mapper001) MapCHR(address uint16) int {
	address &= 0x1FFF
	var off int
	if m.control&0x10 == 0 {
		off = int(m.chr0&0x1E)*0x1000 + int(address)
	} else if address < 0x1000 {
		off = int(m.chr0)*0x1000 + int(address)
	} else {
		off = int(m.chr1)*0x1000 + int(address&0x0FFF)
	}
	return off % m.chrSize
}

func (m *Mapper001) Mirroring() MirrorMode {
	switch m.control & 3 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	}
	return MirrorHorizontal
}

// Registers returns the committed register values and the pending shift state.
func (m *Mapper001) Registers() (control, chr0, chr1, prg, shift, count uint8) {
	return m.control, m.chr0, m.chr1, m.prg, m.shift, m.count
}
