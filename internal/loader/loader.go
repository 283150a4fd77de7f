// Package loader reads flat program images: ASCII hex listings and raw
// binaries. iNES files are handled by the cartridge package.
package loader

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a program image format
type Format int

const (
	FormatUnknown Format = iota
	FormatINES
	FormatASCII
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatINES:
		return "ines"
	case FormatASCII:
		return "ascii"
	case FormatBinary:
		return "binary"
	}
	return "unknown"
}

// Load and entry addresses of the flat formats
const (
	ASCIILoadAddress  = 0x0600
	ASCIIEntryAddress = 0x0600
	BinLoadAddress    = 0x0000
	BinEntryAddress   = 0x0400
)

// ErrUnknownFormat is returned by Detect for unrecognised extensions
var ErrUnknownFormat = errors.New("unknown image format")

// Image is a flat program ready for bus.NewFlat
type Image struct {
	Data  []byte
	Load  uint16
	Entry uint16
}

// Detect picks the format from the file extension.
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nes":
		return FormatINES, nil
	case ".hex", ".txt":
		return FormatASCII, nil
	case ".bin":
		return FormatBinary, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ParseASCII reads whitespace-separated hex bytes. Everything after a ';'
// on a line is a comment. Tokens may hold several bytes ("A9FF").
func ParseASCII(r io.Reader) (Image, error) {
	var data []byte
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		for _, token := range strings.Fields(text) {
			b, err := hex.DecodeString(token)
			if err != nil {
				return Image{}, fmt.Errorf("line %d: invalid hex %q: %w", line, token, err)
			}
			data = append(data, b...)
		}
	}
	if err := scanner.Err(); err != nil {
		return Image{}, fmt.Errorf("failed to read ASCII image: %w", err)
	}
	if ASCIILoadAddress+len(data) > 0x10000 {
		return Image{}, fmt.Errorf("ASCII image of %d bytes does not fit at $%04X", len(data), ASCIILoadAddress)
	}
	return Image{Data: data, Load: ASCIILoadAddress, Entry: ASCIIEntryAddress}, nil
}

// ParseBinary reads a raw image loaded at $0000 with entry point $0400.
func ParseBinary(r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, 0x10001))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read binary image: %w", err)
	}
	if len(data) > 0x10000 {
		return Image{}, fmt.Errorf("binary image larger than 64KB")
	}
	return Image{Data: data, Load: BinLoadAddress, Entry: BinEntryAddress}, nil
}

// LoadFile reads a flat image in the given format.
func LoadFile(path string, format Format) (Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatASCII:
		return ParseASCII(file)
	case FormatBinary:
		return ParseBinary(file)
	}
	return Image{}, fmt.Errorf("%w: %s is not a flat format", ErrUnknownFormat, format)
}
