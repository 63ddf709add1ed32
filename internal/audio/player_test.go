package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PlayerConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(*PlayerConfig) {}},
		{name: "stereo", mutate: func(c *PlayerConfig) { c.Channels = 2 }},
		{name: "sample rate too low", mutate: func(c *PlayerConfig) { c.SampleRate = 4000 }, wantErr: true},
		{name: "sample rate too high", mutate: func(c *PlayerConfig) { c.SampleRate = 384000 }, wantErr: true},
		{name: "three channels", mutate: func(c *PlayerConfig) { c.Channels = 3 }, wantErr: true},
		{name: "8-bit", mutate: func(c *PlayerConfig) { c.BitDepth = 8 }, wantErr: true},
		{name: "negative buffer", mutate: func(c *PlayerConfig) { c.BufferSize = -time.Millisecond }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPlayerConfig()
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	cfg := DefaultPlayerConfig()

	// One second of mono 16-bit audio.
	assert.Equal(t, time.Second, Duration(make([]byte, 2*cfg.SampleRate), cfg))
	assert.Equal(t, time.Duration(0), Duration(nil, cfg))

	cfg.Channels = 2
	assert.Equal(t, 500*time.Millisecond, Duration(make([]byte, 2*cfg.SampleRate), cfg))

	assert.Equal(t, time.Duration(0), Duration(make([]byte, 100), PlayerConfig{}))
}

func TestPlayerStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", PlayerState(42).String())
}

func TestMockPlayerPlaysForDuration(t *testing.T) {
	var played []byte
	cfg := DefaultPlayerConfig()
	// 200ms of audio at 10x speed is ~20ms.
	m := NewMockPlayer(cfg, 10, MockCallbacks{OnPlay: func(b []byte) { played = b }})

	pcm := make([]byte, 2*cfg.SampleRate/5)
	require.NoError(t, m.Play(pcm))
	assert.True(t, m.IsPlaying())
	assert.Equal(t, StatePlaying, m.State())
	assert.Len(t, played, len(pcm))

	assert.Eventually(t, func() bool { return !m.IsPlaying() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, int64(1), m.PlayCount())
	assert.Equal(t, int64(0), m.StopCount())
}

func TestMockPlayerStop(t *testing.T) {
	stops := 0
	m := NewMockPlayer(DefaultPlayerConfig(), 1, MockCallbacks{OnStop: func() { stops++ }})

	// Stopping while idle does nothing.
	require.NoError(t, m.Stop())
	assert.Equal(t, 0, stops)

	require.NoError(t, m.Play(make([]byte, 44100*10)))
	require.NoError(t, m.Stop())
	assert.False(t, m.IsPlaying())
	assert.Equal(t, 1, stops)
	assert.Equal(t, int64(1), m.StopCount())
}

func TestMockPlayerErrors(t *testing.T) {
	m := DefaultMockPlayer()
	assert.ErrorIs(t, m.Play(nil), ErrEmptyAudio)

	boom := errors.New("device unplugged")
	m.SetPlayError(boom)
	assert.ErrorIs(t, m.Play([]byte{0, 0}), boom)
	assert.Equal(t, int64(0), m.PlayCount())
	m.SetPlayError(nil)

	closed := 0
	m = NewMockPlayer(DefaultPlayerConfig(), 1, MockCallbacks{OnClose: func() { closed++ }})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, closed)
	assert.Equal(t, StateClosed, m.State())
	assert.ErrorIs(t, m.Play([]byte{0, 0}), ErrPlayerClosed)
}
