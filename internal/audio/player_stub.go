//go:build headless

package audio

import "errors"

// ErrNoAudio is returned by NewPlayer in headless builds
var ErrNoAudio = errors.New("audio output not available in headless build")

// Player is unavailable in headless builds
type Player struct{}

func NewPlayer(sampleRate, bufferSamples int, volume float32) (*Player, error) {
	return nil, ErrNoAudio
}

func (p *Player) PushSample(sample float32) {}
func (p *Player) Start()                    {}
func (p *Player) Close() error              { return nil }
