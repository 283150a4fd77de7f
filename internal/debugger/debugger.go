// Package debugger implements an interactive command shell for inspecting
// and steering a running machine.
package debugger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"cyclenes/internal/bus"
	"cyclenes/internal/cpu"
	"cyclenes/internal/debug"
)

// ErrQuit is returned by Run when the user asks to leave the emulator
var ErrQuit = errors.New("debugger: quit")

const prompt = "(nes) "

// Command is a parsed input line
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a line into a lower-cased command name and arguments
func ParseCommand(line string) Command {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}
	}
	return Command{Name: strings.ToLower(parts[0]), Args: parts[1:]}
}

// ParseHex parses a hex number with an optional "0x" or "$" prefix
func ParseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), "$")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	return strconv.ParseUint(s, 16, bits)
}

// Shell reads commands from a terminal and applies them to a bus
type Shell struct {
	bus  *bus.Bus
	term *term.Terminal
	out  io.Writer

	conds *conditions
	last  string
	fd    int
}

// New creates a shell over rw. Output is written through the same
// terminal, which translates newlines for raw mode.
func New(b *bus.Bus, rw io.ReadWriter) *Shell {
	t := term.NewTerminal(rw, prompt)
	return &Shell{
		bus:   b,
		term:  t,
		out:   t,
		conds: newConditions(b),
		fd:    -1,
	}
}

// Close releases the Lua state used by breakpoint conditions
func (s *Shell) Close() {
	s.conds.close()
}

// Run reads and executes commands until the user continues, which returns
// nil, or quits, which returns ErrQuit. End of input counts as quit.
func (s *Shell) Run() error {
	if s.fd >= 0 {
		state, err := term.MakeRaw(s.fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(s.fd, state)
	}

	s.where()
	for {
		line, err := s.term.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrQuit
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			// Empty line repeats the previous command
			line = s.last
		}
		s.last = line

		switch s.Execute(line) {
		case ActionContinue:
			return nil
		case ActionQuit:
			return ErrQuit
		}
	}
}

// NewStdin creates a shell on the process terminal. Run switches the
// terminal to raw mode for line editing while it reads commands.
func NewStdin(b *bus.Bus) *Shell {
	sh := New(b, struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout})
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		sh.fd = fd
	}
	return sh
}

// HandleStop reports why b stopped and runs the shell. Its signature
// matches the application's stop handler.
func (s *Shell) HandleStop(b *bus.Bus, err error) error {
	if b != s.bus {
		return fmt.Errorf("debugger attached to a different machine")
	}
	s.report(err)
	return s.Run()
}

// Action tells Run what to do after a command
type Action int

const (
	ActionStay Action = iota
	ActionContinue
	ActionQuit
)

// Execute runs one command line
func (s *Shell) Execute(line string) Action {
	cmd := ParseCommand(line)
	switch cmd.Name {
	case "":
	case "m":
		s.cmdMemory(cmd)
	case "o":
		s.cmdOverwrite(cmd)
	case "op":
		s.cmdOpcode(cmd)
	case "cpu":
		s.cmdCPU(cmd)
	case "ppu":
		s.cmdPPU()
	case "stack":
		fmt.Fprint(s.out, debug.DumpStack(s.bus.Peek, s.bus.CPU.SP))
	case "b":
		s.cmdBreak(cmd)
	case "d":
		s.cmdDelete(cmd)
	case "l":
		s.cmdList()
	case "s":
		s.cmdStep(cmd)
	case "n":
		s.cmdNextFrame()
	case "t":
		s.cmdTrace(cmd)
	case "r":
		s.bus.Reset()
		s.where()
	case "c":
		s.resume()
		return ActionContinue
	case "q":
		return ActionQuit
	case "h", "help", "?":
		s.help()
	default:
		fmt.Fprintf(s.out, "unknown command %q, try h\n", cmd.Name)
	}
	return ActionStay
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `m <addr> [len]        dump memory
o <addr> <val>        overwrite memory
op <byte>             describe an opcode
cpu [reg <val>]       show or set a register (a x y sp p pc)
ppu                   show PPU state
stack                 dump the stack page
b <addr> [if <expr>]  set a breakpoint, optionally with a Lua condition
d <addr>              delete a breakpoint
l                     list breakpoints
s [n]                 step n instructions
n                     run to the end of the frame
t [n|on|off]          show the last n trace lines, or toggle tracing
r                     reset
c                     continue
q                     quit
`)
}

// where prints the instruction about to execute
func (s *Shell) where() {
	fmt.Fprintln(s.out, s.traceLine())
}

func (s *Shell) traceLine() string {
	c := s.bus.CPU
	return debug.FormatLine(c.State(), c.Disassemble(c.PC), s.bus.PPU.GetScanline(), s.bus.PPU.GetCycle())
}

// resume lets execution pass a breakpoint that stopped at PC
func (s *Shell) resume() {
	for _, addr := range s.bus.Breakpoints() {
		if addr == s.bus.CPU.PC {
			s.bus.Resume()
			return
		}
	}
}

func (s *Shell) cmdMemory(cmd Command) {
	if len(cmd.Args) < 1 {
		fmt.Fprintln(s.out, "usage: m <addr> [len]")
		return
	}
	addr, err := ParseHex(cmd.Args[0], 16)
	if err != nil {
		fmt.Fprintf(s.out, "invalid address: %s\n", cmd.Args[0])
		return
	}
	length := uint64(16)
	if len(cmd.Args) >= 2 {
		if length, err = ParseHex(cmd.Args[1], 16); err != nil || length == 0 {
			fmt.Fprintf(s.out, "invalid length: %s\n", cmd.Args[1])
			return
		}
	}

	for row := uint64(0); row < length; row += 16 {
		var hex strings.Builder
		var text []byte
		for i := row; i < row+16 && i < length; i++ {
			v := s.bus.Peek(uint16(addr + i))
			fmt.Fprintf(&hex, " %02X", v)
			if v >= 0x20 && v < 0x7F {
				text = append(text, v)
			} else {
				text = append(text, '.')
			}
		}
		fmt.Fprintf(s.out, "%04X:%-48s  %s\n", uint16(addr+row), hex.String(), text)
	}
}

func (s *Shell) cmdOverwrite(cmd Command) {
	if len(cmd.Args) < 2 {
		fmt.Fprintln(s.out, "usage: o <addr> <val>")
		return
	}
	addr, err := ParseHex(cmd.Args[0], 16)
	if err != nil {
		fmt.Fprintf(s.out, "invalid address: %s\n", cmd.Args[0])
		return
	}
	val, err := ParseHex(cmd.Args[1], 8)
	if err != nil {
		fmt.Fprintf(s.out, "invalid value: %s\n", cmd.Args[1])
		return
	}
	was := s.bus.Peek(uint16(addr))
	s.bus.Poke(uint16(addr), uint8(val))
	fmt.Fprintf(s.out, "$%04X: %02X -> %02X\n", addr, was, s.bus.Peek(uint16(addr)))
}

func (s *Shell) cmdOpcode(cmd Command) {
	if len(cmd.Args) < 1 {
		fmt.Fprintln(s.out, "usage: op <byte>")
		return
	}
	op, err := ParseHex(cmd.Args[0], 8)
	if err != nil {
		fmt.Fprintf(s.out, "invalid opcode: %s\n", cmd.Args[0])
		return
	}
	inst := cpu.Lookup(uint8(op))
	if inst == nil {
		fmt.Fprintf(s.out, "opcode $%02X => illegal\n", op)
		return
	}
	name := inst.Name
	if inst.Unofficial {
		name = "*" + name
	}
	fmt.Fprintf(s.out, "opcode $%02X => %s (%d bytes, %d cycles)\n", op, name, inst.Bytes, inst.Cycles)
}

func (s *Shell) cmdCPU(cmd Command) {
	c := s.bus.CPU
	if len(cmd.Args) >= 2 {
		v, err := ParseHex(cmd.Args[1], 16)
		if err != nil {
			fmt.Fprintf(s.out, "invalid value: %s\n", cmd.Args[1])
			return
		}
		switch strings.ToLower(cmd.Args[0]) {
		case "a":
			c.A = uint8(v)
		case "x":
			c.X = uint8(v)
		case "y":
			c.Y = uint8(v)
		case "sp":
			c.SP = uint8(v)
		case "p", "status":
			c.SetStatusByte(uint8(v))
		case "pc":
			c.PC = uint16(v)
		default:
			fmt.Fprintf(s.out, "invalid register: %s\n", cmd.Args[0])
			return
		}
	}

	st := c.State()
	fmt.Fprintf(s.out, "PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\n",
		st.PC, st.A, st.X, st.Y, st.P, st.SP, st.Cycles)
	fmt.Fprintf(s.out, "flags %s\n", flagString(st.P))
}

func flagString(p uint8) string {
	const names = "NV-BDIZC"
	out := []byte(names)
	for i := range out {
		if p&(0x80>>i) == 0 {
			out[i] = '.'
		}
	}
	return string(out)
}

func (s *Shell) cmdPPU() {
	st := s.bus.PPU.State()
	fmt.Fprintf(s.out, "scanline %d dot %d frame %d\n", st.Scanline, st.Cycle, st.Frame)
	fmt.Fprintf(s.out, "CTRL:%02X MASK:%02X STATUS:%02X OAMADDR:%02X\n", st.Ctrl, st.Mask, st.Status, st.OAMAddr)
	fmt.Fprintf(s.out, "v:%04X t:%04X x:%d w:%t nmi:%t\n", st.V, st.T, st.X, st.W, st.NMIPending)
}

func (s *Shell) cmdBreak(cmd Command) {
	if len(cmd.Args) < 1 {
		s.cmdList()
		return
	}
	addr, err := ParseHex(cmd.Args[0], 16)
	if err != nil {
		fmt.Fprintf(s.out, "invalid address: %s\n", cmd.Args[0])
		return
	}

	rest := cmd.Args[1:]
	if len(rest) > 0 && strings.EqualFold(rest[0], "if") {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		s.bus.AddBreakpoint(uint16(addr))
		fmt.Fprintf(s.out, "breakpoint at $%04X\n", addr)
		return
	}

	expr := strings.Join(rest, " ")
	cond, err := s.conds.compile(expr)
	if err != nil {
		fmt.Fprintf(s.out, "invalid condition: %v\n", err)
		return
	}
	s.bus.AddBreakpointCond(uint16(addr), cond)
	fmt.Fprintf(s.out, "breakpoint at $%04X if %s\n", addr, expr)
}

func (s *Shell) cmdDelete(cmd Command) {
	if len(cmd.Args) < 1 {
		fmt.Fprintln(s.out, "usage: d <addr>")
		return
	}
	addr, err := ParseHex(cmd.Args[0], 16)
	if err != nil {
		fmt.Fprintf(s.out, "invalid address: %s\n", cmd.Args[0])
		return
	}
	if s.bus.RemoveBreakpoint(uint16(addr)) {
		fmt.Fprintf(s.out, "deleted breakpoint at $%04X\n", addr)
	} else {
		fmt.Fprintf(s.out, "no breakpoint at $%04X\n", addr)
	}
}

func (s *Shell) cmdList() {
	addrs := s.bus.Breakpoints()
	if len(addrs) == 0 {
		fmt.Fprintln(s.out, "no breakpoints")
		return
	}
	for _, addr := range addrs {
		d := s.bus.CPU.Disassemble(addr)
		fmt.Fprintf(s.out, "$%04X  %s\n", addr, d.Text())
	}
}

func (s *Shell) cmdStep(cmd Command) {
	n := uint64(1)
	if len(cmd.Args) >= 1 {
		v, err := strconv.ParseUint(cmd.Args[0], 10, 32)
		if err != nil || v == 0 {
			fmt.Fprintf(s.out, "invalid count: %s\n", cmd.Args[0])
			return
		}
		n = v
	}

	s.resume()
	for i := uint64(0); i < n; i++ {
		line := s.traceLine()
		if _, err := s.bus.Step(); err != nil {
			s.report(err)
			s.where()
			return
		}
		fmt.Fprintln(s.out, line)
	}
	s.where()
}

func (s *Shell) cmdNextFrame() {
	s.resume()
	if err := s.bus.RunFrame(); err != nil {
		s.report(err)
		s.where()
		return
	}
	fmt.Fprintf(s.out, "frame %d\n", s.bus.Frames())
	s.where()
}

func (s *Shell) cmdTrace(cmd Command) {
	if len(cmd.Args) >= 1 {
		switch strings.ToLower(cmd.Args[0]) {
		case "on":
			if s.bus.Tracer() == nil {
				s.bus.SetTracer(debug.NewTracer(debug.DefaultTraceDepth))
			}
			fmt.Fprintln(s.out, "tracing on")
			return
		case "off":
			s.bus.SetTracer(nil)
			fmt.Fprintln(s.out, "tracing off")
			return
		}
	}

	tr := s.bus.Tracer()
	if tr == nil {
		fmt.Fprintln(s.out, "tracing is off, enable it with t on")
		return
	}
	n := 10
	if len(cmd.Args) >= 1 {
		v, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			fmt.Fprintf(s.out, "invalid count: %s\n", cmd.Args[0])
			return
		}
		n = v
	}
	for _, line := range tr.Replay(n) {
		fmt.Fprintln(s.out, line)
	}
}

// report prints why execution stopped
func (s *Shell) report(err error) {
	var trap *bus.TrapError
	switch {
	case errors.Is(err, cpu.ErrBreakpoint):
		fmt.Fprintf(s.out, "breakpoint at $%04X\n", s.bus.CPU.PC)
	case errors.As(err, &trap):
		fmt.Fprintln(s.out, trap.Error())
	default:
		log.Printf("[DEBUGGER] %v", err)
		fmt.Fprintf(s.out, "stopped: %v\n", err)
	}
}
