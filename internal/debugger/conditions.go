package debugger

import (
	"fmt"
	"log"

	lua "github.com/yuin/gopher-lua"

	"cyclenes/internal/bus"
)

// conditions compiles breakpoint conditions written as Lua expressions.
// Expressions see the registers as globals a, x, y, sp, p and pc, the
// timing as cycles, scanline, dot and frame, and can read memory with
// peek(addr).
type conditions struct {
	bus *bus.Bus
	L   *lua.LState
}

func newConditions(b *bus.Bus) *conditions {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenMath(L)
	lua.OpenString(L)

	c := &conditions{bus: b, L: L}
	L.SetGlobal("peek", L.NewFunction(c.peek))
	return c
}

func (c *conditions) close() {
	c.L.Close()
}

func (c *conditions) peek(L *lua.LState) int {
	addr := L.CheckInt(1)
	L.Push(lua.LNumber(c.bus.Peek(uint16(addr))))
	return 1
}

// compile turns expr into a breakpoint condition. A condition that fails
// at run time is logged and treated as true, so the breakpoint still stops.
func (c *conditions) compile(expr string) (bus.Condition, error) {
	fn, err := c.L.LoadString("return " + expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expr, err)
	}

	return func(s bus.Snapshot) bool {
		ok, err := c.eval(fn, s)
		if err != nil {
			log.Printf("[DEBUGGER] Condition %q failed: %v", expr, err)
			return true
		}
		return ok
	}, nil
}

func (c *conditions) eval(fn *lua.LFunction, s bus.Snapshot) (bool, error) {
	L := c.L
	L.SetGlobal("a", lua.LNumber(s.CPU.A))
	L.SetGlobal("x", lua.LNumber(s.CPU.X))
	L.SetGlobal("y", lua.LNumber(s.CPU.Y))
	L.SetGlobal("sp", lua.LNumber(s.CPU.SP))
	L.SetGlobal("p", lua.LNumber(s.CPU.P))
	L.SetGlobal("pc", lua.LNumber(s.CPU.PC))
	L.SetGlobal("cycles", lua.LNumber(s.Cycles))
	L.SetGlobal("frame", lua.LNumber(s.Frames))
	L.SetGlobal("scanline", lua.LNumber(s.PPU.Scanline))
	L.SetGlobal("dot", lua.LNumber(s.PPU.Cycle))

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return false, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}
