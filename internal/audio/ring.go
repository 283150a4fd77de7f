package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Ring is a bounded sample queue shared between the emulation goroutine,
// which pushes, and the audio driver, which reads. When full the oldest
// samples are dropped; when empty reads are padded with silence.
type Ring struct {
	mu    sync.Mutex
	buf   []float32
	head  int
	count int

	underruns uint64
}

// NewRing creates a ring holding up to capacity samples
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float32, capacity)}
}

// PushSample appends one sample
func (r *Ring) PushSample(sample float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = sample
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

// Len returns the number of queued samples
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Underruns returns how many Read calls ran out of samples
func (r *Ring) Underruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.underruns
}

// Read fills p with little-endian float32 mono samples. It never blocks and
// always fills p completely.
func (r *Ring) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p) / 4
	short := false
	for i := 0; i < n; i++ {
		var s float32
		if r.count > 0 {
			s = r.buf[r.head]
			r.head = (r.head + 1) % len(r.buf)
			r.count--
		} else {
			short = true
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	for i := n * 4; i < len(p); i++ {
		p[i] = 0
	}
	if short {
		r.underruns++
	}
	return len(p), nil
}
