package cartridge

import "fmt"

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single-lower"
	case MirrorSingleScreen1:
		return "single-upper"
	case MirrorFourScreen:
		return "four-screen"
	}
	return fmt.Sprintf("MirrorMode(%d)", uint8(m))
}

// Mapper translates CPU and PPU addresses into offsets inside the cartridge's
// PRG and CHR storage. The set of mappers is closed and fixed at load time.
type Mapper interface {
	ID() uint8
	Name() string

	// MapPRG resolves a CPU address in $4020-$FFFF. ram reports whether the
	// offset indexes PRG RAM rather than PRG ROM.
	MapPRG(address uint16) (offset int, ram bool, err error)

	// MapCHR resolves a PPU pattern-table address ($0000-$1FFF).
	MapCHR(address uint16) int

	// OnCPUWrite applies bank-select side effects of a write to $8000-$FFFF.
	// cycle identifies the CPU cycle the write belongs to.
	OnCPUWrite(address uint16, value uint8, cycle uint64)

	Mirroring() MirrorMode
	Reset()
}

// createMapper creates the appropriate mapper for the given header
func createMapper(h Header, prgSize, chrSize int, hasPRGRAM bool) (Mapper, error) {
	switch h.MapperID {
	case 0:
		return NewMapper000(prgSize, chrSize, hasPRGRAM, h.Mirroring), nil
	case 1:
		return NewMapper001(prgSize, chrSize), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMapper, h.MapperID)
	}
}
