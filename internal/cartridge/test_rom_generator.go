package cartridge

import (
	"bytes"
	"fmt"
)

// TestROMConfig describes a generated iNES image used by tests across the
// module.
type TestROMConfig struct {
	PRGSize      uint8          // PRG ROM size in 16KB units
	CHRSize      uint8          // CHR ROM size in 8KB units (0 = CHR RAM)
	MapperID     uint8          // Mapper number
	Mirroring    MirrorMode     // Nametable mirroring
	HasBattery   bool           // Battery-backed SRAM
	HasTrainer   bool           // 512-byte trainer
	Instructions []uint8        // Code placed at PRG offset 0
	InitialData  map[int]uint8  // Bytes at specific PRG offsets
	ResetVector  uint16
	IRQVector    uint16
	NMIVector    uint16
	CHRData      []uint8
}

// TestROMBuilder provides a fluent interface for building test ROMs
type TestROMBuilder struct {
	config TestROMConfig
}

// NewTestROMBuilder creates a builder for a one-bank NROM image whose vectors
// all point at $8000.
func NewTestROMBuilder() *TestROMBuilder {
	return &TestROMBuilder{
		config: TestROMConfig{
			PRGSize:     1,
			CHRSize:     1,
			Mirroring:   MirrorHorizontal,
			InitialData: make(map[int]uint8),
			ResetVector: 0x8000,
			IRQVector:   0x8000,
			NMIVector:   0x8000,
		},
	}
}

func (b *TestROMBuilder) WithPRGSize(size uint8) *TestROMBuilder {
	b.config.PRGSize = size
	return b
}

func (b *TestROMBuilder) WithCHRSize(size uint8) *TestROMBuilder {
	b.config.CHRSize = size
	return b
}

// WithCHRRAM configures the ROM to use CHR RAM instead of CHR ROM
func (b *TestROMBuilder) WithCHRRAM() *TestROMBuilder {
	b.config.CHRSize = 0
	return b
}

func (b *TestROMBuilder) WithMapper(mapperID uint8) *TestROMBuilder {
	b.config.MapperID = mapperID
	return b
}

func (b *TestROMBuilder) WithMirroring(mirroring MirrorMode) *TestROMBuilder {
	b.config.Mirroring = mirroring
	return b
}

func (b *TestROMBuilder) WithBattery() *TestROMBuilder {
	b.config.HasBattery = true
	return b
}

func (b *TestROMBuilder) WithTrainer() *TestROMBuilder {
	b.config.HasTrainer = true
	return b
}

func (b *TestROMBuilder) WithInstructions(instructions []uint8) *TestROMBuilder {
	b.config.Instructions = append([]uint8(nil), instructions...)
	return b
}

// WithData sets bytes starting at a PRG ROM offset
func (b *TestROMBuilder) WithData(offset int, data []uint8) *TestROMBuilder {
	for i, value := range data {
		b.config.InitialData[offset+i] = value
	}
	return b
}

func (b *TestROMBuilder) WithResetVector(address uint16) *TestROMBuilder {
	b.config.ResetVector = address
	return b
}

func (b *TestROMBuilder) WithIRQVector(address uint16) *TestROMBuilder {
	b.config.IRQVector = address
	return b
}

func (b *TestROMBuilder) WithNMIVector(address uint16) *TestROMBuilder {
	b.config.NMIVector = address
	return b
}

func (b *TestROMBuilder) WithCHRData(data []uint8) *TestROMBuilder {
	b.config.CHRData = append([]uint8(nil), data...)
	return b
}

// Build generates the ROM data based on the current configuration
func (b *TestROMBuilder) Build() ([]byte, error) {
	return GenerateTestROM(b.config)
}

// BuildCartridge generates and loads the ROM as a cartridge
func (b *TestROMBuilder) BuildCartridge() (*Cartridge, error) {
	romData, err := b.Build()
	if err != nil {
		return nil, err
	}
	return LoadFromReader(bytes.NewReader(romData))
}

// GenerateTestROM creates an iNES image from config. The vectors occupy the
// last six bytes of the final PRG bank.
func GenerateTestROM(config TestROMConfig) ([]byte, error) {
	if config.PRGSize == 0 {
		return nil, fmt.Errorf("PRG ROM size cannot be zero")
	}

	header := make([]byte, 16)
	copy(header[0:4], "NES\x1A")
	header[4] = config.PRGSize
	header[5] = config.CHRSize

	flags6 := (config.MapperID & 0x0F) << 4
	if config.Mirroring == MirrorVertical {
		flags6 |= 0x01
	}
	if config.HasBattery {
		flags6 |= 0x02
	}
	if config.HasTrainer {
		flags6 |= 0x04
	}
	if config.Mirroring == MirrorFourScreen {
		flags6 |= 0x08
	}
	header[6] = flags6
	header[7] = config.MapperID & 0xF0

	result := append([]byte{}, header...)
	if config.HasTrainer {
		result = append(result, make([]byte, 512)...)
	}

	size := int(config.PRGSize) * 0x4000
	if len(config.Instructions) > size-6 {
		return nil, fmt.Errorf("instructions too large for PRG ROM")
	}
	prg := make([]byte, size)
	copy(prg, config.Instructions)
	for offset, value := range config.InitialData {
		if offset >= 0 && offset < size {
			prg[offset] = value
		}
	}
	putVector(prg[size-6:], config.NMIVector)
	putVector(prg[size-4:], config.ResetVector)
	putVector(prg[size-2:], config.IRQVector)
	result = append(result, prg...)

	if config.CHRSize > 0 {
		chr := make([]byte, int(config.CHRSize)*0x2000)
		copy(chr, config.CHRData)
		result = append(result, chr...)
	}
	return result, nil
}

func putVector(dst []byte, address uint16) {
	dst[0] = uint8(address)
	dst[1] = uint8(address >> 8)
}
