package debugger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"cyclenes/internal/bus"
	"cyclenes/internal/cpu"
)

// fakeTTY feeds scripted input to the shell and captures what it prints
type fakeTTY struct {
	in  io.Reader
	out bytes.Buffer
}

func (f *fakeTTY) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeTTY) Write(p []byte) (int, error) { return f.out.Write(p) }

// LDX #0; loop: INX; JMP loop
var countProgram = []byte{0xA2, 0x00, 0xE8, 0x4C, 0x02, 0x06}

func newTestShell(t *testing.T, input string) (*Shell, *bus.Bus, *fakeTTY) {
	t.Helper()
	b, err := bus.NewFlat(countProgram, 0x0600, 0x0600)
	if err != nil {
		t.Fatal(err)
	}
	tty := &fakeTTY{in: strings.NewReader(input)}
	sh := New(b, tty)
	t.Cleanup(sh.Close)
	return sh, b, tty
}

func runToBreak(t *testing.T, b *bus.Bus) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if _, err := b.Step(); err != nil {
			if errors.Is(err, cpu.ErrBreakpoint) {
				return
			}
			t.Fatalf("Step: %v", err)
		}
	}
	t.Fatal("Breakpoint never hit")
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"1F", "1f", "0x1F", "$1F"} {
		if v, err := ParseHex(in, 16); err != nil || v != 0x1F {
			t.Errorf("ParseHex(%q) = %X, %v", in, v, err)
		}
	}
	for _, in := range []string{"", "0x", "zz", "100"} {
		if _, err := ParseHex(in, 8); err == nil {
			t.Errorf("ParseHex(%q, 8) should fail", in)
		}
	}
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("  B 0602 if x == 3 ")
	if cmd.Name != "b" || len(cmd.Args) != 5 || cmd.Args[0] != "0602" {
		t.Errorf("ParseCommand = %+v", cmd)
	}
	if ParseCommand("   ").Name != "" {
		t.Error("Blank line should parse to an empty command")
	}
}

func TestShell_MemoryDumpAndOverwrite(t *testing.T) {
	sh, b, tty := newTestShell(t, "")

	sh.Execute("m 0x0600 6")
	if !strings.Contains(tty.out.String(), "0600: A2 00 E8 4C 02 06") {
		t.Errorf("Memory dump missing program bytes:\n%s", tty.out.String())
	}

	tty.out.Reset()
	sh.Execute("o 10 5a")
	if b.Peek(0x10) != 0x5A {
		t.Errorf("$10 = %02X, want 5A", b.Peek(0x10))
	}
	if !strings.Contains(tty.out.String(), "$0010: 00 -> 5A") {
		t.Errorf("Overwrite output = %q", tty.out.String())
	}

	tty.out.Reset()
	sh.Execute("o 10 zz")
	if !strings.Contains(tty.out.String(), "invalid value") {
		t.Errorf("Bad value output = %q", tty.out.String())
	}
}

func TestShell_Opcode(t *testing.T) {
	sh, _, tty := newTestShell(t, "")
	sh.Execute("op a9")
	sh.Execute("op 0xA7")
	sh.Execute("op 02")

	out := tty.out.String()
	for _, want := range []string{"$A9 => LDA", "$A7 => *LAX", "$02 => illegal"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestShell_EditRegisters(t *testing.T) {
	sh, b, tty := newTestShell(t, "")
	sh.Execute("cpu x 7f")
	sh.Execute("cpu pc 0602")
	if b.CPU.X != 0x7F || b.CPU.PC != 0x0602 {
		t.Errorf("X=%02X PC=%04X", b.CPU.X, b.CPU.PC)
	}
	if !strings.Contains(tty.out.String(), "PC:0602") {
		t.Errorf("Register display = %q", tty.out.String())
	}

	tty.out.Reset()
	sh.Execute("cpu q 1")
	if !strings.Contains(tty.out.String(), "invalid register") {
		t.Errorf("Bad register output = %q", tty.out.String())
	}
}

func TestShell_StackAndPPU(t *testing.T) {
	sh, _, tty := newTestShell(t, "")
	sh.Execute("stack")
	sh.Execute("ppu")
	out := tty.out.String()
	if !strings.Contains(out, "SP=FD") {
		t.Errorf("Stack output missing SP:\n%s", out)
	}
	if !strings.Contains(out, "scanline 0 dot 21") {
		t.Errorf("PPU output missing position:\n%s", out)
	}
}

func TestShell_ConditionalBreakpoint(t *testing.T) {
	sh, b, tty := newTestShell(t, "")
	sh.Execute("b 0602 if x >= 3")
	if got := b.Breakpoints(); len(got) != 1 || got[0] != 0x0602 {
		t.Fatalf("Breakpoints = %v", got)
	}

	runToBreak(t, b)
	if b.CPU.PC != 0x0602 || b.CPU.X != 3 {
		t.Fatalf("Stopped at PC=%04X X=%d, want 0602 with X=3", b.CPU.PC, b.CPU.X)
	}

	if sh.Execute("c") != ActionContinue {
		t.Fatal("c should continue")
	}
	runToBreak(t, b)
	if b.CPU.X != 4 {
		t.Errorf("Second stop with X=%d, want 4", b.CPU.X)
	}

	tty.out.Reset()
	sh.Execute("l")
	if !strings.Contains(tty.out.String(), "$0602  INX") {
		t.Errorf("List output = %q", tty.out.String())
	}

	sh.Execute("d 0602")
	if len(b.Breakpoints()) != 0 {
		t.Error("Breakpoint not deleted")
	}
	tty.out.Reset()
	sh.Execute("l")
	if !strings.Contains(tty.out.String(), "no breakpoints") {
		t.Errorf("List output = %q", tty.out.String())
	}
}

func TestShell_BreakpointPeek(t *testing.T) {
	sh, b, _ := newTestShell(t, "")
	sh.Execute("b 0602 peek(0x10) == 0x5a")
	b.Poke(0x10, 0x5A)
	runToBreak(t, b)
	if b.CPU.X != 0 {
		t.Errorf("Stopped with X=%d, want first arrival", b.CPU.X)
	}
}

func TestShell_InvalidCondition(t *testing.T) {
	sh, b, tty := newTestShell(t, "")
	sh.Execute("b 0602 if x >=")
	if !strings.Contains(tty.out.String(), "invalid condition") {
		t.Errorf("Output = %q", tty.out.String())
	}
	if len(b.Breakpoints()) != 0 {
		t.Error("Invalid condition should not add a breakpoint")
	}
}

func TestShell_StepAndTrace(t *testing.T) {
	sh, b, tty := newTestShell(t, "")
	sh.Execute("t")
	if !strings.Contains(tty.out.String(), "tracing is off") {
		t.Errorf("Trace without tracer = %q", tty.out.String())
	}

	sh.Execute("t on")
	tty.out.Reset()
	sh.Execute("s 3")
	if b.CPU.PC != 0x0602 || b.CPU.X != 1 {
		t.Errorf("After 3 steps PC=%04X X=%d", b.CPU.PC, b.CPU.X)
	}
	out := tty.out.String()
	if !strings.Contains(out, "0600  A2 00     LDX #$00") {
		t.Errorf("Step output missing first instruction:\n%s", out)
	}

	tty.out.Reset()
	sh.Execute("t 2")
	out = tty.out.String()
	if strings.Contains(out, "LDX") || !strings.Contains(out, "INX") || !strings.Contains(out, "JMP $0602") {
		t.Errorf("Trace replay = %q", out)
	}

	sh.Execute("t off")
	if b.Tracer() != nil {
		t.Error("t off should remove the tracer")
	}
}

func TestShell_Reset(t *testing.T) {
	sh, b, _ := newTestShell(t, "")
	sh.Execute("s 4")
	sh.Execute("r")
	// Soft reset: back at the entry point with SP three lower
	if b.CPU.PC != 0x0600 || b.CPU.SP != 0xFA {
		t.Errorf("After reset PC=%04X SP=%02X", b.CPU.PC, b.CPU.SP)
	}
}

func TestShell_Run(t *testing.T) {
	sh, _, tty := newTestShell(t, "m 0600 2\rc\r")
	if err := sh.Run(); err != nil {
		t.Fatalf("Run = %v, want nil on continue", err)
	}
	if !strings.Contains(tty.out.String(), "0600: A2 00") {
		t.Errorf("Run output = %q", tty.out.String())
	}

	sh, _, _ = newTestShell(t, "q\r")
	if err := sh.Run(); !errors.Is(err, ErrQuit) {
		t.Errorf("q gave %v, want ErrQuit", err)
	}

	sh, _, _ = newTestShell(t, "ppu\r")
	if err := sh.Run(); !errors.Is(err, ErrQuit) {
		t.Errorf("EOF gave %v, want ErrQuit", err)
	}
}

func TestShell_EmptyLineRepeats(t *testing.T) {
	sh, b, _ := newTestShell(t, "s\r\r\rq\r")
	sh.Run()
	if b.CPU.PC != 0x0602 || b.CPU.X != 1 {
		t.Errorf("Repeated step left PC=%04X X=%d", b.CPU.PC, b.CPU.X)
	}
}

func TestShell_HandleStop(t *testing.T) {
	sh, b, tty := newTestShell(t, "c\r")
	b.AddBreakpoint(0x0602)
	runToBreak(t, b)

	if err := sh.HandleStop(b, cpu.ErrBreakpoint); err != nil {
		t.Fatalf("HandleStop = %v, want nil on continue", err)
	}
	if !strings.Contains(tty.out.String(), "breakpoint at $0602") {
		t.Errorf("Stop report missing:\n%s", tty.out.String())
	}

	other, err := bus.NewFlat(countProgram, 0x0600, 0x0600)
	if err != nil {
		t.Fatal(err)
	}
	if err := sh.HandleStop(other, cpu.ErrBreakpoint); err == nil {
		t.Error("HandleStop on another machine should fail")
	}
}
