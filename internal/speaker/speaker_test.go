package speaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/chattts/internal/audio"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSynth returns pcm sized to play for a fixed duration on the default
// player config.
type fakeSynth struct {
	mu     sync.Mutex
	length time.Duration
	fail   map[string]error
	texts  []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	cfg := audio.DefaultPlayerConfig()
	n := int(f.length.Seconds()*float64(cfg.SampleRate)) * 2
	if n < 2 {
		n = 2
	}
	return make([]byte, n), nil
}

func utterances(texts ...string) []intake.Utterance {
	batch := make([]intake.Utterance, 0, len(texts))
	for _, t := range texts {
		batch = append(batch, intake.Utterance{Speaker: "Ann", Text: t})
	}
	return batch
}

type recorder struct {
	mu       sync.Mutex
	spoken   []string
	outcomes []Outcome
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnSpeak: func(u intake.Utterance) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.spoken = append(r.spoken, u.Text)
		},
		OnDone: func(_ intake.Utterance, o Outcome) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.outcomes = append(r.outcomes, o)
		},
	}
}

func newSpeaker(synth Synthesizer, out Output) (*Speaker, *recorder) {
	s := New(synth, out, control.New(control.DefaultPrefix, true, true))
	s.Gap = 20 * time.Millisecond
	s.PollInterval = 2 * time.Millisecond
	r := &recorder{}
	s.Hooks = r.hooks()
	return s, r
}

func TestSpeakAllInOrder(t *testing.T) {
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})
	s, r := newSpeaker(&fakeSynth{length: 10 * time.Millisecond}, out)

	err := s.SpeakAll(context.Background(), utterances("one", "two", "three"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, r.spoken)
	assert.Equal(t, []Outcome{Spoken, Spoken, Spoken}, r.outcomes)
	assert.Equal(t, int64(3), out.PlayCount())
}

func TestSpeakAllGapOnlyBetweenUtterances(t *testing.T) {
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})

	tests := []struct {
		name  string
		batch []intake.Utterance
		min   time.Duration
		max   time.Duration
	}{
		{name: "single utterance has no trailing gap", batch: utterances("one"), max: 150 * time.Millisecond},
		{name: "two utterances have one gap", batch: utterances("one", "two"), min: 200 * time.Millisecond},
		{name: "empty batch", batch: nil, max: 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSpeaker(&fakeSynth{length: time.Millisecond}, out)
			s.Gap = 200 * time.Millisecond

			start := time.Now()
			require.NoError(t, s.SpeakAll(context.Background(), tt.batch))
			took := time.Since(start)
			if tt.min > 0 {
				assert.GreaterOrEqual(t, took, tt.min)
			}
			if tt.max > 0 {
				assert.Less(t, took, tt.max)
			}
		})
	}
}

func TestSpeakAllSkip(t *testing.T) {
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})
	long := &fakeSynth{length: 10 * time.Second}
	short := &fakeSynth{length: 10 * time.Millisecond}
	s, r := newSpeaker(synthFunc(func(ctx context.Context, text string) ([]byte, error) {
		if text == "long" {
			return long.Synthesize(ctx, text)
		}
		return short.Synthesize(ctx, text)
	}), out)

	s.Gap = 80 * time.Millisecond

	var skippedAt, nextAt time.Time
	hooks := s.Hooks
	s.Hooks.OnSpeak = func(u intake.Utterance) {
		hooks.OnSpeak(u)
		switch u.Text {
		case "long":
			s.Control.RequestSkip()
		case "short":
			nextAt = time.Now()
		}
	}
	s.Hooks.OnDone = func(u intake.Utterance, o Outcome) {
		hooks.OnDone(u, o)
		if o == Skipped {
			skippedAt = time.Now()
		}
	}

	start := time.Now()
	require.NoError(t, s.SpeakAll(context.Background(), utterances("long", "short")))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"long", "short"}, r.spoken)
	assert.Equal(t, []Outcome{Skipped, Spoken}, r.outcomes)
	assert.Equal(t, int64(1), out.StopCount())

	// Skipping cuts playback short but keeps the pause before the next one.
	require.False(t, skippedAt.IsZero())
	require.False(t, nextAt.IsZero())
	assert.GreaterOrEqual(t, nextAt.Sub(skippedAt), s.Gap)
}

type synthFunc func(ctx context.Context, text string) ([]byte, error)

func (f synthFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

func TestStaleSkipDoesNotCancelNextUtterance(t *testing.T) {
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})
	s, r := newSpeaker(&fakeSynth{length: 30 * time.Millisecond}, out)

	s.Control.RequestSkip()
	require.NoError(t, s.SpeakAll(context.Background(), utterances("one")))
	assert.Equal(t, []Outcome{Spoken}, r.outcomes)
	assert.Equal(t, int64(0), out.StopCount())
}

func TestSpeakAllContinuesAfterErrors(t *testing.T) {
	boom := errors.New("synthesis exploded")
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})
	synth := &fakeSynth{length: 5 * time.Millisecond, fail: map[string]error{"bad": boom}}
	s, r := newSpeaker(synth, out)

	require.NoError(t, s.SpeakAll(context.Background(), utterances("bad", "good")))
	assert.Equal(t, []Outcome{Failed, Spoken}, r.outcomes)
	assert.Equal(t, int64(1), out.PlayCount())
}

func TestSpeakAllPlaybackError(t *testing.T) {
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{})
	out.SetPlayError(errors.New("no device"))
	s, r := newSpeaker(&fakeSynth{length: 5 * time.Millisecond}, out)

	require.NoError(t, s.SpeakAll(context.Background(), utterances("a", "b")))
	assert.Equal(t, []Outcome{Failed, Failed}, r.outcomes)
}

func TestSpeakAllCanceled(t *testing.T) {
	stopped := make(chan struct{}, 1)
	out := audio.NewMockPlayer(audio.DefaultPlayerConfig(), 1, audio.MockCallbacks{
		OnStop: func() { stopped <- struct{}{} },
	})
	s, r := newSpeaker(&fakeSynth{length: 10 * time.Second}, out)

	ctx, cancel := context.WithCancel(context.Background())
	s.Hooks.OnSpeak = func(intake.Utterance) {
		time.AfterFunc(20*time.Millisecond, cancel)
	}
	defer cancel()

	err := s.SpeakAll(ctx, utterances("one", "two"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []Outcome{Canceled}, r.outcomes)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("playback was not stopped on cancel")
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "spoken", Spoken.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "canceled", Canceled.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
