package memory

import "fmt"

// Flat is a linear 64KB address space with no mirroring or I/O, used to run
// raw program images such as CPU functional tests.
type Flat struct {
	data [0x10000]uint8
}

func NewFlat() *Flat {
	return &Flat{}
}

// Load copies image into memory starting at address.
func (f *Flat) Load(image []byte, address uint16) error {
	if int(address)+len(image) > len(f.data) {
		return fmt.Errorf("image of %d bytes does not fit at $%04X", len(image), address)
	}
	copy(f.data[address:], image)
	return nil
}

func (f *Flat) Read(address uint16) uint8         { return f.data[address] }
func (f *Flat) Write(address uint16, value uint8) { f.data[address] = value }
func (f *Flat) Peek(address uint16) uint8         { return f.data[address] }
