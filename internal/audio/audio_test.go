package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func readFloats(t *testing.T, r *Ring, n int) []float32 {
	t.Helper()
	p := make([]byte, n*4)
	if got, err := r.Read(p); err != nil || got != len(p) {
		t.Fatalf("Read = %d, %v", got, err)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

func TestRing_FIFOAndSilence(t *testing.T) {
	r := NewRing(8)
	r.PushSample(0.25)
	r.PushSample(0.5)

	got := readFloats(t, r, 4)
	want := []float32{0.25, 0.5, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d = %f, want %f", i, got[i], want[i])
		}
	}
	if r.Underruns() != 1 {
		t.Errorf("Underruns = %d, want 1", r.Underruns())
	}
}

func TestRing_DropsOldestWhenFull(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.PushSample(float32(i))
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
	got := readFloats(t, r, 3)
	if got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Errorf("Ring kept %v, want [3 4 5]", got)
	}
	if r.Underruns() != 0 {
		t.Error("Full read should not count an underrun")
	}
}

func TestRing_PartialSampleBytesZeroed(t *testing.T) {
	r := NewRing(4)
	r.PushSample(1)
	p := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if n, _ := r.Read(p); n != 6 {
		t.Fatalf("Read = %d", n)
	}
	if p[4] != 0 || p[5] != 0 {
		t.Errorf("Trailing bytes = % X", p[4:])
	}
}

type countSink struct{ n int }

func (c *countSink) PushSample(float32) { c.n++ }

func TestTee(t *testing.T) {
	a, b := &countSink{}, &countSink{}
	s := Tee(a, nil, b)
	s.PushSample(0.1)
	s.PushSample(0.2)
	if a.n != 2 || b.n != 2 {
		t.Errorf("Counts = %d, %d", a.n, b.n)
	}
	if single := Tee(nil, a); single != Sink(a) {
		t.Error("Tee of one sink should return it unchanged")
	}
}

func TestRecorder_WritesValidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	rec, err := NewRecorder(path, 44100)
	if err != nil {
		t.Fatal(err)
	}
	const n = wavChunk + 100
	for i := 0; i < n; i++ {
		if i%50 < 25 {
			rec.PushSample(0.3)
		} else {
			rec.PushSample(0)
		}
	}
	if rec.Samples() != n {
		t.Errorf("Samples = %d", rec.Samples())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("Not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 44100 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("Format = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != n {
		t.Errorf("Decoded %d samples, want %d", len(buf.Data), n)
	}
	var nonZero bool
	for _, s := range buf.Data {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("Square wave recorded as silence")
	}
}
