package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		prefix        string
		speech        bool
		prefixEnabled bool
		want          State
	}{
		{"defaults", "", true, true, State{true, true, DefaultPrefix}},
		{"custom prefix", "!say", true, true, State{true, true, "!say"}},
		{"prefix off", "!say", false, false, State{false, false, ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.prefix, tt.speech, tt.prefixEnabled)
			assert.Equal(t, tt.want, c.Snapshot())
		})
	}
}

func TestToggleSpeech(t *testing.T) {
	c := New("", true, true)

	s := c.ToggleSpeech()
	assert.False(t, s.SpeechEnabled)
	assert.False(t, c.Snapshot().SpeechEnabled)

	s = c.ToggleSpeech()
	assert.True(t, s.SpeechEnabled)

	c.SetSpeech(false)
	assert.False(t, c.Snapshot().SpeechEnabled)
}

func TestTogglePrefix(t *testing.T) {
	c := New("!tts", true, true)

	s := c.TogglePrefix()
	assert.Equal(t, State{SpeechEnabled: true, PrefixEnabled: false, ActivePrefix: ""}, s)

	s = c.TogglePrefix()
	assert.Equal(t, State{SpeechEnabled: true, PrefixEnabled: true, ActivePrefix: "!tts"}, s)
	assert.Equal(t, "!tts", c.Prefix())
}

func TestSkipIsLevelTriggered(t *testing.T) {
	c := New("", true, true)
	assert.False(t, c.ConsumeSkip())

	c.RequestSkip()
	c.RequestSkip()
	c.RequestSkip()
	assert.True(t, c.SkipRequested())
	assert.True(t, c.ConsumeSkip())
	assert.False(t, c.ConsumeSkip())

	c.RequestSkip()
	c.ResetSkip()
	assert.False(t, c.SkipRequested())
}

// Readers must only ever observe snapshots that some writer published.
func TestConcurrentSnapshotsAreConsistent(t *testing.T) {
	c := New("!tts", true, true)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.TogglePrefix()
				c.ToggleSpeech()
			}
		}()
	}

	done := make(chan struct{})
	var readErr error
	var once sync.Once
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			s := c.Snapshot()
			if s.PrefixEnabled != (s.ActivePrefix == "!tts") {
				once.Do(func() { readErr = assert.AnError })
			}
		}
	}()

	wg.Wait()
	<-done
	require.NoError(t, readErr, "observed torn control state")

	// An even number of toggles of each switch returns both to their start values.
	assert.Equal(t, State{true, true, "!tts"}, c.Snapshot())
}
