// Package cartridge implements ROM loading and the NROM and MMC1 mappers.
package cartridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Header is the metadata the core needs to build a cartridge.
type Header struct {
	PRGBanks   uint8 // in 16KB units
	CHRBanks   uint8 // in 8KB units, 0 means CHR RAM
	MapperID   uint8
	Mirroring  MirrorMode
	HasBattery bool
	HasTrainer bool
	PRGRAMSize uint8 // in 8KB units, header byte 8
}

// Cartridge represents a NES cartridge
type Cartridge struct {
	header Header

	prgROM []uint8
	chr    []uint8
	prgRAM []uint8

	// CHR memory type
	hasCHRRAM bool

	mapper Mapper
}

// iNES header structure
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // in 16KB units
	CHRROMSize uint8 // in 8KB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// LoadFromFile loads a cartridge from an iNES file
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader loads a cartridge from an io.Reader
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var raw iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrMalformedImage, err)
	}
	h, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	if h.HasTrainer {
		if _, err := io.CopyN(io.Discard, r, 512); err != nil {
			return nil, fmt.Errorf("%w: truncated trainer: %v", ErrMalformedImage, err)
		}
	}

	prg := make([]uint8, int(h.PRGBanks)*0x4000)
	if _, err := io.ReadFull(r, prg); err != nil {
		return nil, fmt.Errorf("%w: truncated PRG ROM: %v", ErrMalformedImage, err)
	}

	var chr []uint8
	if h.CHRBanks > 0 {
		chr = make([]uint8, int(h.CHRBanks)*0x2000)
		if _, err := io.ReadFull(r, chr); err != nil {
			return nil, fmt.Errorf("%w: truncated CHR ROM: %v", ErrMalformedImage, err)
		}
	}

	return New(h, prg, chr)
}

func parseHeader(raw iNESHeader) (Header, error) {
	if string(raw.Magic[:]) != "NES\x1A" {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrMalformedImage, raw.Magic[:])
	}
	if raw.PRGROMSize == 0 {
		return Header{}, fmt.Errorf("%w: PRG ROM size cannot be zero", ErrMalformedImage)
	}

	flags7 := raw.Flags7
	// Old dumps carry junk like "DiskDude!" in bytes 7-15; only trust the
	// high mapper nibble when the tail is clean or the file is NES 2.0.
	isNES2 := flags7&0x0C == 0x08
	if !isNES2 && (raw.Padding[1]|raw.Padding[2]|raw.Padding[3]|raw.Padding[4]) != 0 {
		flags7 = 0
	}

	h := Header{
		PRGBanks:   raw.PRGROMSize,
		CHRBanks:   raw.CHRROMSize,
		MapperID:   (raw.Flags6 >> 4) | (flags7 & 0xF0),
		HasBattery: raw.Flags6&0x02 != 0,
		HasTrainer: raw.Flags6&0x04 != 0,
		PRGRAMSize: raw.PRGRAMSize,
	}
	switch {
	case raw.Flags6&0x08 != 0:
		h.Mirroring = MirrorFourScreen
	case raw.Flags6&0x01 != 0:
		h.Mirroring = MirrorVertical
	default:
		h.Mirroring = MirrorHorizontal
	}
	return h, nil
}

// New builds a cartridge from already-split PRG and CHR data. An empty chr
// slice gives the board 8KB of CHR RAM.
func New(h Header, prg, chr []uint8) (*Cartridge, error) {
	if len(prg) == 0 || len(prg)%0x4000 != 0 {
		return nil, fmt.Errorf("%w: PRG ROM size %d is not a multiple of 16KB", ErrMalformedImage, len(prg))
	}
	if len(chr)%0x2000 != 0 {
		return nil, fmt.Errorf("%w: CHR ROM size %d is not a multiple of 8KB", ErrMalformedImage, len(chr))
	}

	c := &Cartridge{header: h, prgROM: prg, chr: chr}
	if len(chr) == 0 {
		c.chr = make([]uint8, 0x2000)
		c.hasCHRRAM = true
	}

	// MMC1 boards always carry PRG RAM; NROM only when the header says so.
	hasPRGRAM := h.MapperID == 1 || h.HasBattery || h.PRGRAMSize > 0
	if hasPRGRAM {
		c.prgRAM = make([]uint8, 0x2000)
	}

	m, err := createMapper(h, len(c.prgROM), len(c.chr), hasPRGRAM)
	if err != nil {
		return nil, err
	}
	c.mapper = m
	return c, nil
}

// NewBlank returns an NROM board with zeroed PRG ROM and 8KB CHR RAM. It
// backs the PPU when the CPU runs from a flat memory image.
func NewBlank() *Cartridge {
	c, _ := New(Header{PRGBanks: 1, Mirroring: MirrorHorizontal}, make([]uint8, 0x4000), nil)
	return c
}

// ReadPRG reads the CPU cartridge space ($4020-$FFFF)
func (c *Cartridge) ReadPRG(address uint16) (uint8, error) {
	off, ram, err := c.mapper.MapPRG(address)
	if err != nil {
		return 0, err
	}
	if ram {
		return c.prgRAM[off], nil
	}
	return c.prgROM[off], nil
}

// WritePRG writes the CPU cartridge space. Writes at $8000 and above go to
// the mapper's registers; cycle stamps the CPU cycle of the write.
func (c *Cartridge) WritePRG(address uint16, value uint8, cycle uint64) error {
	if address >= 0x8000 {
		c.mapper.OnCPUWrite(address, value, cycle)
		return nil
	}
	off, ram, err := c.mapper.MapPRG(address)
	if err != nil {
		return err
	}
	if ram {
		c.prgRAM[off] = value
	}
	return nil
}

// ReadCHR reads from CHR ROM/RAM
func (c *Cartridge) ReadCHR(address uint16) uint8 {
	return c.chr[c.mapper.MapCHR(address)]
}

// WriteCHR writes to CHR RAM; writes to CHR ROM are ignored
func (c *Cartridge) WriteCHR(address uint16, value uint8) {
	if c.hasCHRRAM {
		c.chr[c.mapper.MapCHR(address)] = value
	}
}

// Mirroring returns the current nametable mirroring, which MMC1 can change
// at run time.
func (c *Cartridge) Mirroring() MirrorMode {
	return c.mapper.Mirroring()
}

func (c *Cartridge) Header() Header { return c.header }
func (c *Cartridge) Mapper() Mapper { return c.mapper }
func (c *Cartridge) HasCHRRAM() bool { return c.hasCHRRAM }
func (c *Cartridge) HasPRGRAM() bool { return c.prgRAM != nil }

// Reset returns the mapper to its power-up state. Memory contents survive.
func (c *Cartridge) Reset() {
	c.mapper.Reset()
}
