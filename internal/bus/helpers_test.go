package bus

import (
	"testing"

	"cyclenes/internal/cartridge"
)

// newTestBus builds an NROM cartridge with program at $8000 and wires a bus
// around it.
func newTestBus(t *testing.T, program []uint8) *Bus {
	t.Helper()
	return newTestBusFrom(t, cartridge.NewTestROMBuilder().WithInstructions(program))
}

func newTestBusFrom(t *testing.T, builder *cartridge.TestROMBuilder) *Bus {
	t.Helper()
	cart, err := builder.BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to create test cartridge: %v", err)
	}
	return New(cart)
}

func stepN(t *testing.T, b *Bus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := b.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
}
