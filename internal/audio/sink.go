// Package audio delivers APU samples to the sound card and to WAV files.
package audio

// Sink receives mixed samples in the range 0 to 1, one call per output
// sample. apu.APU pushes into a Sink.
type Sink interface {
	PushSample(sample float32)
}

type tee []Sink

func (t tee) PushSample(sample float32) {
	for _, s := range t {
		s.PushSample(sample)
	}
}

// Tee returns a Sink that forwards every sample to each non-nil sink.
func Tee(sinks ...Sink) Sink {
	var out tee
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// dcBlocker removes the mixer's DC offset so silence sits at zero.
type dcBlocker struct {
	prevIn  float32
	prevOut float32
}

func (f *dcBlocker) filter(x float32) float32 {
	y := x - f.prevIn + 0.995*f.prevOut
	f.prevIn = x
	f.prevOut = y
	return y
}
