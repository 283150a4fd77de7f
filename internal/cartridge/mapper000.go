package cartridge

// Mapper000 implements NROM (mapper 0)
// NROM is the simplest mapper with no bank switching capabilities.
// It supports:
// - 16KB or 32KB PRG ROM (16KB is mirrored to fill 32KB address space)
// - 8KB CHR ROM or CHR RAM
// - 8KB PRG RAM at 0x6000-0x7FFF when the header declares it
type Mapper000 struct {
	prgSize   int
	chrSize   int
	hasPRGRAM bool
	mirror    MirrorMode
}

// NewMapper000 creates a new NROM mapper
func NewMapper000(prgSize, chrSize int, hasPRGRAM bool, mirror MirrorMode) *Mapper000 {
	return &Mapper000{
		prgSize:   prgSize,
		chrSize:   chrSize,
		hasPRGRAM: hasPRGRAM,
		mirror:    mirror,
	}
}

func (m *Mapper000) ID() uint8    { return 0 }
func (m *Mapper000) Name() string { return "NROM" }

// MapPRG maps CPU addresses
// Memory map:
// 0x6000-0x7FFF: 8KB PRG RAM, if present
// 0x8000-0xFFFF: 32KB PRG ROM space, 16KB images mirrored
func (m *Mapper000) MapPRG(address uint16) (int, bool, error) {
	switch {
	case address >= 0x8000:
		return int(address-0x8000) % m.prgSize, false, nil
	case address >= 0x6000:
		if !m.hasPRGRAM {
			return 0, false, &MapperViolation{Mapper: m.Name(), Address: address, Op: "access", Reason: "no PRG RAM on board"}
		}
		return int(address - 0x6000), true, nil
	}
	return 0, false, &MapperViolation{Mapper: m.Name(), Address: address, Op: "access", Reason: "unmapped expansion area"}
}

func (m *Mapper000) MapCHR(address uint16) int {
	return int(address&0x1FFF) % m.chrSize
}

// OnCPUWrite is a no-op: NROM has no registers.
func (m *Mapper000) OnCPUWrite(address uint16, value uint8, cycle uint64) {}

func (m *Mapper000) Mirroring() MirrorMode { return m.mirror }

func (m *Mapper000) Reset() {}
