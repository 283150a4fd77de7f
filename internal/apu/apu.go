// Package apu implements the Audio Processing Unit for the NES.
//
// The frame sequencer, length counters and the pulse, triangle and noise
// channels are clocked per CPU cycle. The DMC channel is not emulated:
// its registers are accepted and ignored.
package apu

const (
	// CPUFrequency is the NTSC CPU clock in Hz
	CPUFrequency = 1789773.0
	// DefaultSampleRate is used until SetSampleRate is called
	DefaultSampleRate = 44100
)

// SampleSink receives mixed samples in the range 0 to 1.
type SampleSink interface {
	PushSample(sample float32)
}

// APU represents the NES Audio Processing Unit
type APU struct {
	pulse1   pulse
	pulse2   pulse
	triangle triangle
	noise    noise

	// Frame sequencer
	frameCounter uint32
	fiveStep     bool
	irqInhibit   bool
	frameIRQFlag bool

	// Sample rate conversion
	sink             SampleSink
	sampleRate       int
	cycleAccumulator float64

	cycles uint64
}

// New creates an APU in its power-up state
func New() *APU {
	apu := &APU{sampleRate: DefaultSampleRate}
	apu.Reset()
	return apu
}

// Reset silences every channel and restarts the frame sequencer in
// 4-step mode with the frame IRQ enabled.
func (apu *APU) Reset() {
	apu.pulse1 = pulse{onesComplement: true}
	apu.pulse2 = pulse{}
	apu.triangle = triangle{}
	apu.noise = noise{shiftRegister: 1}

	apu.frameCounter = 0
	apu.fiveStep = false
	apu.irqInhibit = false
	apu.frameIRQFlag = false

	apu.cycles = 0
	apu.cycleAccumulator = 0
}

// SetSink sets where mixed samples go; nil discards them
func (apu *APU) SetSink(sink SampleSink) {
	apu.sink = sink
}

// SetSampleRate sets the output sample rate
func (apu *APU) SetSampleRate(rate int) {
	apu.sampleRate = rate
	apu.cycleAccumulator = 0
}

// GetSampleRate returns the output sample rate
func (apu *APU) GetSampleRate() int {
	return apu.sampleRate
}

// Step advances the APU by one CPU cycle
func (apu *APU) Step() {
	apu.cycles++
	apu.stepFrameCounter()

	// Pulse timers run at half the CPU clock
	if apu.cycles%2 == 0 {
		apu.pulse1.stepTimer()
		apu.pulse2.stepTimer()
	}
	apu.triangle.stepTimer()
	apu.noise.stepTimer()

	apu.generateSample()
}

// stepFrameCounter drives the quarter-frame (envelope, linear counter) and
// half-frame (length, sweep) clocks.
func (apu *APU) stepFrameCounter() {
	apu.frameCounter++

	switch apu.frameCounter {
	case 7457, 22371:
		apu.quarterFrame()
	case 14913:
		apu.quarterFrame()
		apu.halfFrame()
	case 29829:
		if !apu.fiveStep {
			apu.quarterFrame()
			apu.halfFrame()
			apu.raiseFrameIRQ()
		}
	case 29830:
		if !apu.fiveStep {
			apu.raiseFrameIRQ()
			apu.frameCounter = 0
		}
	case 37281:
		apu.quarterFrame()
		apu.halfFrame()
	case 37282:
		apu.frameCounter = 0
	}
}

func (apu *APU) raiseFrameIRQ() {
	if !apu.irqInhibit {
		apu.frameIRQFlag = true
	}
}

func (apu *APU) quarterFrame() {
	apu.pulse1.env.clock()
	apu.pulse2.env.clock()
	apu.noise.env.clock()
	apu.triangle.clockLinear()
}

func (apu *APU) halfFrame() {
	apu.pulse1.length.clock()
	apu.pulse1.clockSweep()
	apu.pulse2.length.clock()
	apu.pulse2.clockSweep()
	apu.triangle.length.clock()
	apu.noise.length.clock()
}

func (apu *APU) generateSample() {
	if apu.sink == nil || apu.sampleRate <= 0 {
		return
	}
	apu.cycleAccumulator += float64(apu.sampleRate) / CPUFrequency
	if apu.cycleAccumulator < 1.0 {
		return
	}
	apu.cycleAccumulator -= 1.0
	apu.sink.PushSample(apu.mix())
}

// mix applies the nonlinear NES mixer approximation
func (apu *APU) mix() float32 {
	var out float64
	if pulseSum := float64(apu.pulse1.output()) + float64(apu.pulse2.output()); pulseSum != 0 {
		out += 95.88 / (8128.0/pulseSum + 100.0)
	}
	tnd := float64(apu.triangle.output())/8227.0 + float64(apu.noise.output())/12241.0
	if tnd != 0 {
		out += 159.79 / (1.0/tnd + 100.0)
	}
	return float32(out)
}

// WriteRegister writes to an APU register ($4000-$4013, $4015, $4017)
func (apu *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000, 0x4001, 0x4002, 0x4003:
		apu.pulse1.write(address&3, value)
	case 0x4004, 0x4005, 0x4006, 0x4007:
		apu.pulse2.write(address&3, value)
	case 0x4008, 0x400A, 0x400B:
		apu.triangle.write(address&3, value)
	case 0x400C, 0x400E, 0x400F:
		apu.noise.write(address&3, value)
	case 0x4015:
		apu.pulse1.length.setEnabled(value&0x01 != 0)
		apu.pulse2.length.setEnabled(value&0x02 != 0)
		apu.triangle.length.setEnabled(value&0x04 != 0)
		apu.noise.length.setEnabled(value&0x08 != 0)
	case 0x4017:
		apu.fiveStep = value&0x80 != 0
		apu.irqInhibit = value&0x40 != 0
		if apu.irqInhibit {
			apu.frameIRQFlag = false
		}
		apu.frameCounter = 0
		if apu.fiveStep {
			apu.quarterFrame()
			apu.halfFrame()
		}
	}
}

// ReadStatus reads $4015: length counter status and the frame IRQ flag.
// Reading clears the frame IRQ flag.
func (apu *APU) ReadStatus() uint8 {
	var status uint8
	if apu.pulse1.length.value > 0 {
		status |= 0x01
	}
	if apu.pulse2.length.value > 0 {
		status |= 0x02
	}
	if apu.triangle.length.value > 0 {
		status |= 0x04
	}
	if apu.noise.length.value > 0 {
		status |= 0x08
	}
	if apu.frameIRQFlag {
		status |= 0x40
	}
	apu.frameIRQFlag = false
	return status
}

// IRQ reports the level of the APU's IRQ output
func (apu *APU) IRQ() bool {
	return apu.frameIRQFlag
}
