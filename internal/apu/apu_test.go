package apu

import "testing"

// MockSink records pushed samples
type MockSink struct {
	samples []float32
}

func (m *MockSink) PushSample(sample float32) {
	m.samples = append(m.samples, sample)
}

func stepN(apu *APU, n int) {
	for i := 0; i < n; i++ {
		apu.Step()
	}
}

func TestAPU_FrameIRQ(t *testing.T) {
	apu := New()

	stepN(apu, 29828)
	if apu.IRQ() {
		t.Fatal("Frame IRQ raised early")
	}
	stepN(apu, 1)
	if !apu.IRQ() {
		t.Fatal("Expected frame IRQ at the end of the 4-step sequence")
	}

	status := apu.ReadStatus()
	if status&0x40 == 0 {
		t.Errorf("Expected frame IRQ bit in $4015, got 0x%02X", status)
	}
	if apu.IRQ() {
		t.Error("Reading $4015 should acknowledge the frame IRQ")
	}
}

func TestAPU_FrameIRQInhibit(t *testing.T) {
	apu := New()
	stepN(apu, 29830)
	if !apu.IRQ() {
		t.Fatal("Expected frame IRQ")
	}

	apu.WriteRegister(0x4017, 0x40)
	if apu.IRQ() {
		t.Error("Setting the inhibit bit should clear the flag")
	}
	stepN(apu, 2*29830)
	if apu.IRQ() {
		t.Error("No frame IRQ while inhibited")
	}
}

func TestAPU_FiveStepModeHasNoIRQ(t *testing.T) {
	apu := New()
	apu.WriteRegister(0x4017, 0x80)
	stepN(apu, 3*37282)
	if apu.IRQ() {
		t.Error("5-step mode never raises the frame IRQ")
	}
}

func TestAPU_LengthCounters(t *testing.T) {
	t.Run("load needs the channel enabled", func(t *testing.T) {
		apu := New()
		apu.WriteRegister(0x4003, 0x08) // length index 1 = 254
		if apu.ReadStatus()&0x01 != 0 {
			t.Error("Length loaded while pulse 1 disabled")
		}
		apu.WriteRegister(0x4015, 0x01)
		apu.WriteRegister(0x4003, 0x08)
		if apu.ReadStatus()&0x01 == 0 {
			t.Error("Expected pulse 1 length active")
		}
	})

	t.Run("disabling clears", func(t *testing.T) {
		apu := New()
		apu.WriteRegister(0x4015, 0x0F)
		apu.WriteRegister(0x4003, 0x08)
		apu.WriteRegister(0x4007, 0x08)
		apu.WriteRegister(0x400B, 0x08)
		apu.WriteRegister(0x400F, 0x08)
		if got := apu.ReadStatus() & 0x0F; got != 0x0F {
			t.Fatalf("Expected all four channels active, got 0x%X", got)
		}
		apu.WriteRegister(0x4015, 0x00)
		if got := apu.ReadStatus() & 0x0F; got != 0 {
			t.Errorf("Expected all channels silenced, got 0x%X", got)
		}
	})

	t.Run("counts down on half frames", func(t *testing.T) {
		apu := New()
		apu.WriteRegister(0x4015, 0x01)
		apu.WriteRegister(0x4003, 0x18) // length index 3 = 2
		stepN(apu, 14913)
		if apu.ReadStatus()&0x01 == 0 {
			t.Fatal("Length should still be 1 after one half frame")
		}
		stepN(apu, 29829-14913)
		if apu.ReadStatus()&0x01 != 0 {
			t.Error("Length should reach 0 after two half frames")
		}
	})

	t.Run("halt stops the count", func(t *testing.T) {
		apu := New()
		apu.WriteRegister(0x4015, 0x01)
		apu.WriteRegister(0x4000, 0x20)
		apu.WriteRegister(0x4003, 0x18)
		stepN(apu, 29830)
		if apu.ReadStatus()&0x01 == 0 {
			t.Error("Halted length counter should not decrement")
		}
	})

	t.Run("5-step write clocks immediately", func(t *testing.T) {
		apu := New()
		apu.WriteRegister(0x4015, 0x01)
		apu.WriteRegister(0x4003, 0x18)
		apu.WriteRegister(0x4017, 0x80)
		apu.WriteRegister(0x4017, 0x80)
		if apu.ReadStatus()&0x01 != 0 {
			t.Error("Two 5-step writes should clock the length counter to 0")
		}
	})
}

func TestAPU_SampleRateConversion(t *testing.T) {
	apu := New()
	sink := &MockSink{}
	apu.SetSink(sink)

	stepN(apu, 29830)
	expected := 29830 * float64(DefaultSampleRate) / CPUFrequency
	want := int(expected)
	if got := len(sink.samples); got < want-1 || got > want+1 {
		t.Errorf("Expected about %d samples, got %d", want, got)
	}
	for i, s := range sink.samples {
		if s != 0 {
			t.Fatalf("Silent APU produced sample %d = %f", i, s)
		}
	}
}

func TestAPU_PulseProducesSound(t *testing.T) {
	apu := New()
	sink := &MockSink{}
	apu.SetSink(sink)

	apu.WriteRegister(0x4015, 0x01)
	apu.WriteRegister(0x4000, 0xBF) // 50% duty, constant volume 15
	apu.WriteRegister(0x4002, 0xFD)
	apu.WriteRegister(0x4003, 0x08) // period 0x0FD, length 254

	stepN(apu, 4000)

	var loud, quiet int
	for _, s := range sink.samples {
		if s > 0 {
			loud++
		} else {
			quiet++
		}
	}
	if loud == 0 || quiet == 0 {
		t.Errorf("Expected a square wave, got %d high and %d low samples", loud, quiet)
	}
}

func TestPulseSweepMute(t *testing.T) {
	p := pulse{}
	p.length.enabled = true
	p.write(0, 0x30|0x0F)
	p.write(2, 0x04)
	p.write(3, 0x08)

	if !p.muted() {
		t.Error("Period below 8 should mute")
	}

	p.write(2, 0xFF)
	p.write(3, 0x0F) // period 0x7FF
	p.write(1, 0x81) // sweep up by period>>1
	if !p.muted() {
		t.Error("Sweep target above 0x7FF should mute")
	}
}

func TestEnvelopeDecay(t *testing.T) {
	e := envelope{start: true}
	e.write(0x00) // decay, period 0
	e.clock()
	if e.output() != 15 {
		t.Fatalf("Expected 15 after start, got %d", e.output())
	}
	for i := 0; i < 15; i++ {
		e.clock()
	}
	if e.output() != 0 {
		t.Errorf("Expected decay to 0, got %d", e.output())
	}
	e.clock()
	if e.output() != 0 {
		t.Error("Non-looping envelope should stay at 0")
	}

	e.loop = true
	e.clock()
	if e.output() != 15 {
		t.Errorf("Looping envelope should restart at 15, got %d", e.output())
	}
}
