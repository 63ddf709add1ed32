package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay  func(audio []byte)
	OnStop  func()
	OnClose func()
}

// MockPlayer simulates playback without producing sound. A buffer "plays"
// for as long as it would on a real device, divided by the speed factor.
type MockPlayer struct {
	config    PlayerConfig
	speed     float64
	callbacks MockCallbacks

	mu       sync.Mutex
	start    time.Time
	duration time.Duration
	playing  bool
	playErr  error

	state     atomic.Int32
	playCount atomic.Int64
	stopCount atomic.Int64
}

// NewMockPlayer creates a mock player. speed > 1 makes simulated playback
// finish faster than real time; zero means real time.
func NewMockPlayer(config PlayerConfig, speed float64, callbacks MockCallbacks) *MockPlayer {
	if speed <= 0 {
		speed = 1
	}
	mp := &MockPlayer{config: config, speed: speed, callbacks: callbacks}
	mp.state.Store(int32(StateStopped))
	return mp
}

// DefaultMockPlayer creates a real-time mock player for piper's format.
func DefaultMockPlayer() *MockPlayer {
	return NewMockPlayer(DefaultPlayerConfig(), 1, MockCallbacks{})
}

// SetPlayError makes subsequent Play calls fail with err.
func (m *MockPlayer) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Play starts simulated playback.
func (m *MockPlayer) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	m.mu.Lock()
	if PlayerState(m.state.Load()) == StateClosed {
		m.mu.Unlock()
		return ErrPlayerClosed
	}
	if m.playErr != nil {
		err := m.playErr
		m.mu.Unlock()
		return err
	}
	m.start = time.Now()
	m.duration = time.Duration(float64(Duration(pcm, m.config)) / m.speed)
	m.playing = true
	m.state.Store(int32(StatePlaying))
	m.mu.Unlock()

	m.playCount.Add(1)
	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay(pcm)
	}
	return nil
}

// IsPlaying reports whether the simulated buffer is still playing.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.playing {
		return false
	}
	if time.Since(m.start) >= m.duration {
		m.playing = false
		m.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
		return false
	}
	return true
}

// Stop ends simulated playback.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	wasPlaying := m.playing
	m.playing = false
	m.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))
	m.mu.Unlock()

	if wasPlaying {
		m.stopCount.Add(1)
		if m.callbacks.OnStop != nil {
			m.callbacks.OnStop()
		}
	}
	return nil
}

// Close stops playback and rejects further Play calls.
func (m *MockPlayer) Close() error {
	_ = m.Stop()
	if m.state.Swap(int32(StateClosed)) != int32(StateClosed) && m.callbacks.OnClose != nil {
		m.callbacks.OnClose()
	}
	return nil
}

// State returns the player state.
func (m *MockPlayer) State() PlayerState {
	return PlayerState(m.state.Load())
}

// PlayCount returns how many buffers were started.
func (m *MockPlayer) PlayCount() int64 {
	return m.playCount.Load()
}

// StopCount returns how many buffers were cut short.
func (m *MockPlayer) StopCount() int64 {
	return m.stopCount.Load()
}

// Name implements lifecycle.Component.
func (m *MockPlayer) Name() string {
	return "audio (mock)"
}

// Shutdown implements lifecycle.Component.
func (m *MockPlayer) Shutdown(context.Context) error {
	return m.Close()
}

// ForceStop implements lifecycle.Component.
func (m *MockPlayer) ForceStop() error {
	return m.Stop()
}
