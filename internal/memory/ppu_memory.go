package memory

import "cyclenes/internal/cartridge"

// CHRInterface is the part of a cartridge the PPU address space needs.
type CHRInterface interface {
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirroring() cartridge.MirrorMode
}

// PPUMemory represents the PPU's 14-bit address space
type PPUMemory struct {
	vram       [0x1000]uint8 // 2KB CIRAM, 4KB for four-screen boards
	paletteRAM [32]uint8
	cartridge  CHRInterface
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart CHRInterface) *PPUMemory {
	mem := &PPUMemory{cartridge: cart}
	for i := 0; i < 32; i += 4 {
		mem.paletteRAM[i] = 0x0F
	}
	return mem
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.cartridge.ReadCHR(address)
	case address < 0x3F00:
		// Nametables, $3000-$3EFF mirrors $2000-$2EFF
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.paletteRAM[paletteIndex(address)]
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.cartridge.WriteCHR(address, value)
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.paletteRAM[paletteIndex(address)] = value
	}
}

// nametableIndex resolves a nametable address through the cartridge's
// current mirroring. The mode is read on every access because MMC1 can
// switch it at any time.
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := (address >> 10) & 3
	offset := address & 0x3FF

	switch pm.cartridge.Mirroring() {
	case cartridge.MirrorHorizontal:
		return (table>>1)*0x400 + offset
	case cartridge.MirrorVertical:
		return (table&1)*0x400 + offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return table*0x400 + offset
	}
	return offset
}

// paletteIndex folds $3F00-$3FFF onto 32 entries; the sprite backdrop
// entries $3F10/$14/$18/$1C alias the background ones.
func paletteIndex(address uint16) uint16 {
	index := address & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return index
}
