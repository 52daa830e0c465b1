package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

type tone struct {
	freq   float64
	length time.Duration
	volume float64 // log2 gain
}

var (
	toneExplosion = tone{freq: 110, length: 120 * time.Millisecond, volume: -1}
	toneDeath     = tone{freq: 70, length: 400 * time.Millisecond, volume: 0}
	tonePickup    = tone{freq: 880, length: 60 * time.Millisecond, volume: -2}
	toneWave      = tone{freq: 440, length: 200 * time.Millisecond, volume: -2}
)

type sound struct{}

func newSound() (*sound, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &sound{}, nil
}

// Play queues a sine tone on the speaker mixer
func (s *sound) Play(t tone) {
	sine, err := generators.SineTone(sampleRate, t.freq)
	if err != nil {
		return
	}
	speaker.Play(&effects.Volume{
		Streamer: beep.Take(sampleRate.N(t.length), sine),
		Base:     2,
		Volume:   t.volume,
	})
}

func (s *sound) Close() {
	speaker.Close()
}
