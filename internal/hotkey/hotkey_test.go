package hotkey

import (
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ctrl+alt+t", want: "ctrl+alt+t"},
		{in: "alt+ctrl+t", want: "ctrl+alt+t"},
		{in: "Alt+Ctrl+T", want: "ctrl+alt+t"},
		{in: "shift+alt+ctrl+p", want: "ctrl+alt+shift+p"},
		{in: " ; ", want: ";"},
		{in: "+", want: "+"},
		{in: "ctrl++", want: "ctrl++"},
		{in: "ctrl+ctrl+x", want: "ctrl+x"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestHandle(t *testing.T) {
	ctrl := control.New(control.DefaultPrefix, true, true)
	d := NewDispatcher(ctrl, DefaultBindings(), 0)

	a, ok := d.Handle("alt+ctrl+t")
	assert.True(t, ok)
	assert.Equal(t, ToggleSpeech, a)
	assert.False(t, ctrl.Snapshot().SpeechEnabled)

	a, ok = d.Handle("ctrl+alt+p")
	assert.True(t, ok)
	assert.Equal(t, TogglePrefix, a)
	assert.Equal(t, control.State{SpeechEnabled: false}, ctrl.Snapshot())

	a, ok = d.Handle("ctrl+alt+p")
	assert.True(t, ok)
	assert.Equal(t, TogglePrefix, a)
	assert.Equal(t, "!tts", ctrl.Snapshot().ActivePrefix)

	a, ok = d.Handle(";")
	assert.True(t, ok)
	assert.Equal(t, Skip, a)
	assert.True(t, ctrl.SkipRequested())

	_, ok = d.Handle("x")
	assert.False(t, ok)
}

func TestHandleDebouncesToggles(t *testing.T) {
	ctrl := control.New(control.DefaultPrefix, true, true)
	d := NewDispatcher(ctrl, DefaultBindings(), time.Hour)

	_, ok := d.Handle("ctrl+alt+t")
	assert.True(t, ok)
	// Key repeat within the window is ignored.
	for range 5 {
		_, ok = d.Handle("ctrl+alt+t")
		assert.False(t, ok)
	}
	assert.False(t, ctrl.Snapshot().SpeechEnabled)

	// Each toggle has its own limiter.
	_, ok = d.Handle("ctrl+alt+p")
	assert.True(t, ok)

	// Skip is never debounced.
	for range 3 {
		_, ok = d.Handle(";")
		assert.True(t, ok)
	}
}

func TestCustomBindings(t *testing.T) {
	ctrl := control.New("!say", true, false)
	d := NewDispatcher(ctrl, Bindings{ToggleSpeech: "f8", Skip: "alt+s"}, 0)

	a, ok := d.Lookup("F8")
	assert.True(t, ok)
	assert.Equal(t, ToggleSpeech, a)

	_, ok = d.Lookup("ctrl+alt+p")
	assert.False(t, ok, "empty binding must stay unbound")

	_, ok = d.Handle("alt+s")
	assert.True(t, ok)
	assert.True(t, ctrl.ConsumeSkip())
}

func TestHandleConcurrent(t *testing.T) {
	ctrl := control.New(control.DefaultPrefix, true, true)
	d := NewDispatcher(ctrl, DefaultBindings(), 0)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				d.Handle(";")
				d.Handle("ctrl+alt+t")
			}
		}()
	}
	wg.Wait()

	// 800 toggles leave speech where it started.
	assert.True(t, ctrl.Snapshot().SpeechEnabled)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "toggle speech", ToggleSpeech.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "toggle prefix", TogglePrefix.String())
	assert.Equal(t, "none", Action(0).String())
}
