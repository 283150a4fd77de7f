package app

import (
	"time"

	"cyclenes/internal/bus"
)

// Emulator runs the bus one frame at a time and keeps wall-clock pacing
type Emulator struct {
	bus    *bus.Bus
	config *Config

	targetFrameTime time.Duration
	nextFrame       time.Time

	frameCount     uint64
	emulationTime  time.Duration
	totalEmulation time.Duration

	isRunning     bool
	lastResetTime time.Time
}

// NewEmulator creates an emulator paced at the configured frame rate
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:           b,
		config:        config,
		lastResetTime: time.Now(),
	}
	e.SetTargetFrameRate(config.Emulation.FrameRate)
	return e
}

// Reset resets the machine and the frame statistics
func (e *Emulator) Reset() {
	e.bus.Reset()
	e.frameCount = 0
	e.emulationTime = 0
	e.totalEmulation = 0
	e.lastResetTime = time.Now()
	e.nextFrame = time.Time{}
}

// Start starts the emulator
func (e *Emulator) Start() {
	e.isRunning = true
	e.nextFrame = time.Time{}
}

// Stop stops the emulator
func (e *Emulator) Stop() {
	e.isRunning = false
}

// Update runs exactly one frame. Stops from the bus (breakpoints, traps,
// illegal opcodes) are returned unwrapped so callers can inspect them.
func (e *Emulator) Update() error {
	if !e.isRunning {
		return nil
	}

	start := time.Now()
	err := e.bus.RunFrame()
	e.emulationTime = time.Since(start)
	e.totalEmulation += e.emulationTime
	if err != nil {
		return err
	}
	e.frameCount++
	return nil
}

// Pace sleeps until the next frame is due. Backends that own the display
// loop (vsync) do not need it. If emulation falls more than a frame behind,
// the schedule restarts from now instead of running frames back to back.
func (e *Emulator) Pace() {
	now := time.Now()
	if e.nextFrame.IsZero() || now.Sub(e.nextFrame) > e.targetFrameTime {
		e.nextFrame = now.Add(e.targetFrameTime)
		return
	}
	if wait := e.nextFrame.Sub(now); wait > 0 {
		time.Sleep(wait)
	}
	e.nextFrame = e.nextFrame.Add(e.targetFrameTime)
}

// SetTargetFrameRate changes the pacing rate
func (e *Emulator) SetTargetFrameRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	e.targetFrameTime = time.Duration(float64(time.Second) / fps)
}

// GetTargetFrameTime returns the target frame time
func (e *Emulator) GetTargetFrameTime() time.Duration {
	return e.targetFrameTime
}

// GetFrameCount returns the number of frames run since the last reset
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// GetEmulationTime returns the time spent emulating the last frame
func (e *Emulator) GetEmulationTime() time.Duration {
	return e.emulationTime
}

// GetEmulationSpeed returns how many frames could run in one frame's time,
// averaged over the session. Above 1 means faster than real time.
func (e *Emulator) GetEmulationSpeed() float64 {
	if e.frameCount == 0 || e.totalEmulation == 0 {
		return 0
	}
	avg := e.totalEmulation / time.Duration(e.frameCount)
	return float64(e.targetFrameTime) / float64(avg)
}

// IsRunning returns true if the emulator is running
func (e *Emulator) IsRunning() bool {
	return e.isRunning
}

// GetUptime returns the time since the last reset
func (e *Emulator) GetUptime() time.Duration {
	return time.Since(e.lastResetTime)
}
