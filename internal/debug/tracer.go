// Package debug provides execution tracing and frame dumping for the
// emulator.
package debug

import (
	"fmt"
	"io"
	"strings"

	"cyclenes/internal/cpu"
)

// DefaultTraceDepth is the number of lines kept when NewTracer is given a
// non-positive capacity.
const DefaultTraceDepth = 1024

// Tracer keeps a bounded history of executed instructions in nestest.log
// format and optionally streams every line to a writer.
type Tracer struct {
	lines []string
	next  int
	count int

	output io.Writer
	err    error
}

// NewTracer creates a tracer that remembers the last capacity lines.
func NewTracer(capacity int) *Tracer {
	if capacity <= 0 {
		capacity = DefaultTraceDepth
	}
	return &Tracer{lines: make([]string, capacity)}
}

// SetOutput streams every recorded line to w. A nil writer stops streaming.
func (t *Tracer) SetOutput(w io.Writer) {
	t.output = w
	t.err = nil
}

// Err returns the first error returned by the output writer.
func (t *Tracer) Err() error {
	return t.err
}

// Record appends one line to the history.
func (t *Tracer) Record(line string) {
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.count < len(t.lines) {
		t.count++
	}

	if t.output != nil && t.err == nil {
		if _, err := io.WriteString(t.output, line+"\n"); err != nil {
			t.err = err
		}
	}
}

// Len returns the number of lines currently held.
func (t *Tracer) Len() int {
	return t.count
}

// Replay returns the last n lines, oldest first. n <= 0 returns everything.
func (t *Tracer) Replay(n int) []string {
	if n <= 0 || n > t.count {
		n = t.count
	}
	out := make([]string, 0, n)
	start := t.next - n
	if start < 0 {
		start += len(t.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, t.lines[(start+i)%len(t.lines)])
	}
	return out
}

// Clear drops the history.
func (t *Tracer) Clear() {
	t.next = 0
	t.count = 0
}

// FormatLine renders one nestest.log line:
//
//	C000  4C F5 C5  JMP $C5F5                       A:00 X:00 Y:00 P:24 SP:FD PPU:  0, 21 CYC:7
//
// Unofficial opcodes get a '*' in place of the leading space.
func FormatLine(state cpu.State, d cpu.Disassembly, scanline, dot int) string {
	marker := " "
	if d.Unofficial {
		marker = "*"
	}
	return fmt.Sprintf("%04X  %-8s %-32s A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d",
		state.PC, d.HexBytes(), marker+d.Text(),
		state.A, state.X, state.Y, state.P, state.SP,
		scanline, dot, state.Cycles)
}

// DumpStack renders the used part of the stack page, from the top of the
// stack down to $01FF, eight bytes per row.
func DumpStack(peek func(uint16) uint8, sp uint8) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SP=%02X", sp)
	if sp == 0xFF {
		b.WriteString(" (empty)\n")
		return b.String()
	}
	b.WriteByte('\n')
	for i, addr := 0, 0x100+uint16(sp)+1; addr <= 0x1FF; i, addr = i+1, addr+1 {
		if i%8 == 0 {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%04X:", addr)
		}
		fmt.Fprintf(&b, " %02X", peek(addr))
	}
	b.WriteByte('\n')
	return b.String()
}
