package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

var (
	// ErrPlayerClosed is returned by Play after Close.
	ErrPlayerClosed = errors.New("player is closed")
	// ErrEmptyAudio is returned when asked to play no samples.
	ErrEmptyAudio = errors.New("audio data is empty")
)

// PlayerState represents the current state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PlayerConfig describes the PCM format the player accepts.
type PlayerConfig struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // only 16 is supported
	BufferSize time.Duration
}

// DefaultPlayerConfig matches raw piper output: 22050 Hz, mono, 16-bit.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 22050,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 100 * time.Millisecond,
	}
}

func validateConfig(config PlayerConfig) error {
	if config.SampleRate < 8000 || config.SampleRate > 192000 {
		return fmt.Errorf("sample rate must be between 8000 and 192000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Duration returns how long pcm takes to play in the given format.
func Duration(pcm []byte, config PlayerConfig) time.Duration {
	frame := config.Channels * config.BitDepth / 8
	if frame <= 0 || config.SampleRate <= 0 {
		return 0
	}
	frames := len(pcm) / frame
	return time.Duration(frames) * time.Second / time.Duration(config.SampleRate)
}

// Player plays raw PCM buffers through the system audio device. Only one
// buffer plays at a time; Play replaces whatever was playing.
//
// oto allows a single context per process, so create one Player and share it.
type Player struct {
	otoCtx *oto.Context
	config PlayerConfig

	mu     sync.Mutex
	active *oto.Player
	// data backs active's reader and must stay referenced until it stops.
	data []byte

	state atomic.Int32
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p := &Player{otoCtx: ctx, config: config}
	p.state.Store(int32(StateStopped))
	log.Debug("Audio player initialized", "rate", config.SampleRate, "channels", config.Channels)
	return p, nil
}

// Play starts playing pcm and returns immediately. Use IsPlaying to wait
// for it to finish and Stop to cut it short.
func (p *Player) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return ErrPlayerClosed
	}
	if err := p.otoCtx.Err(); err != nil {
		return fmt.Errorf("audio device error: %w", err)
	}
	_ = p.stopLocked()

	p.data = pcm
	p.active = p.otoCtx.NewPlayer(bytes.NewReader(pcm))
	p.active.Play()
	p.state.Store(int32(StatePlaying))
	return nil
}

// IsPlaying reports whether audio is still coming out of the device.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return false
	}
	if p.active.IsPlaying() {
		return true
	}
	_ = p.stopLocked()
	return false
}

// Stop silences the current buffer immediately. It is a no-op when nothing
// is playing.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	if p.active == nil {
		return nil
	}
	p.active.Pause()
	err := p.active.Close()
	p.active = nil
	p.data = nil
	if p.State() != StateClosed {
		p.state.Store(int32(StateStopped))
	}
	return err
}

// State returns the player state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// Config returns the PCM format the player was opened with.
func (p *Player) Config() PlayerConfig {
	return p.config
}

// Close stops playback and suspends the device. The player cannot be
// reused afterwards.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return nil
	}
	err := p.stopLocked()
	p.state.Store(int32(StateClosed))
	// oto v3 contexts cannot be closed, only suspended.
	if serr := p.otoCtx.Suspend(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Name implements lifecycle.Component.
func (p *Player) Name() string {
	return "audio"
}

// Shutdown implements lifecycle.Component.
func (p *Player) Shutdown(_ context.Context) error {
	return p.Close()
}

// ForceStop implements lifecycle.Component.
func (p *Player) ForceStop() error {
	return p.Stop()
}
