package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
	wavChunk     = 4096
)

// Recorder writes pushed samples to a 16-bit mono WAV file
type Recorder struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	dc      dcBlocker
	written int
	err     error
}

// NewRecorder creates path and prepares it for samples at sampleRate
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}
	return &Recorder{
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, wavBitDepth, 1, wavPCMFormat),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, 0, wavChunk),
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// PushSample converts a mixer sample to signed 16-bit PCM
func (r *Recorder) PushSample(sample float32) {
	s := r.dc.filter(sample)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	r.buf.Data = append(r.buf.Data, int(s*32767))
	if len(r.buf.Data) == wavChunk {
		r.flush()
	}
}

func (r *Recorder) flush() {
	if r.err != nil || len(r.buf.Data) == 0 {
		r.buf.Data = r.buf.Data[:0]
		return
	}
	if err := r.enc.Write(r.buf); err != nil {
		r.err = fmt.Errorf("failed to write WAV samples: %w", err)
	}
	r.written += len(r.buf.Data)
	r.buf.Data = r.buf.Data[:0]
}

// Samples returns the number of samples handed to the encoder
func (r *Recorder) Samples() int {
	return r.written + len(r.buf.Data)
}

// Close flushes pending samples, finalises the WAV header and closes the file
func (r *Recorder) Close() error {
	r.flush()
	if err := r.enc.Close(); err != nil && r.err == nil {
		r.err = fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}
