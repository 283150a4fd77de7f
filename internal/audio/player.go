//go:build !headless

package audio

import (
	"fmt"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Player plays pushed samples on the default output device. oto pulls from
// the ring on its own goroutine.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *Ring
	dc     dcBlocker
	volume float32

	mu      sync.Mutex
	started bool
}

// NewPlayer opens the audio device. bufferSamples sizes the ring between
// the emulator and the device.
func NewPlayer(sampleRate, bufferSamples int, volume float32) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	p := &Player{
		ctx:    ctx,
		ring:   NewRing(bufferSamples),
		volume: volume,
	}
	p.player = ctx.NewPlayer(p.ring)
	log.Printf("[AUDIO] Output at %d Hz, %d sample buffer", sampleRate, bufferSamples)
	return p, nil
}

// PushSample queues one mixer sample for playback
func (p *Player) PushSample(sample float32) {
	p.ring.PushSample(p.dc.filter(sample) * p.volume)
}

// Start begins playback
func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.player.Play()
		p.started = true
	}
}

// Close stops playback and releases the player
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	if u := p.ring.Underruns(); u > 0 {
		log.Printf("[AUDIO] %d buffer underruns", u)
	}
	err := p.player.Close()
	p.player = nil
	p.started = false
	return err
}
