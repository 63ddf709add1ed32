// Package speaker plays a batch of utterances one after another, with
// support for cutting the current one short.
package speaker

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/intake"
)

const (
	// DefaultGap is the pause between two utterances of a batch.
	DefaultGap = 3 * time.Second
	// DefaultPollInterval is how often playback is checked for completion
	// and skip requests.
	DefaultPollInterval = 100 * time.Millisecond
)

// Synthesizer turns text into PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Output plays PCM audio without blocking.
type Output interface {
	Play(pcm []byte) error
	Stop() error
	IsPlaying() bool
}

// Outcome describes how an utterance ended.
type Outcome int

const (
	Spoken Outcome = iota
	Skipped
	Failed
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Spoken:
		return "spoken"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Hooks are called around each utterance. Both are optional and run on the
// caller's goroutine, so they must not block.
type Hooks struct {
	OnSpeak func(u intake.Utterance)
	OnDone  func(u intake.Utterance, o Outcome)
}

// Speaker owns the audio output for the duration of a batch.
type Speaker struct {
	Synth   Synthesizer
	Output  Output
	Control *control.Control

	Gap          time.Duration
	PollInterval time.Duration
	Hooks        Hooks
}

// New returns a Speaker with the default gap and poll interval.
func New(synth Synthesizer, out Output, ctrl *control.Control) *Speaker {
	return &Speaker{
		Synth:        synth,
		Output:       out,
		Control:      ctrl,
		Gap:          DefaultGap,
		PollInterval: DefaultPollInterval,
	}
}

// SpeakAll speaks batch in order. Failures are logged and the next
// utterance is still attempted. It returns early only when ctx is done,
// stopping whatever is playing.
func (s *Speaker) SpeakAll(ctx context.Context, batch []intake.Utterance) error {
	for i, u := range batch {
		outcome := s.speak(ctx, u)
		if s.Hooks.OnDone != nil {
			s.Hooks.OnDone(u, outcome)
		}
		if outcome == Canceled {
			return ctx.Err()
		}
		if i == len(batch)-1 {
			break
		}
		if err := sleep(ctx, s.Gap); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Speaker) speak(ctx context.Context, u intake.Utterance) Outcome {
	// A skip pressed between utterances must not cancel the next one.
	s.Control.ResetSkip()
	if s.Hooks.OnSpeak != nil {
		s.Hooks.OnSpeak(u)
	}

	pcm, err := s.Synth.Synthesize(ctx, u.Text)
	if err != nil {
		if ctx.Err() != nil {
			return Canceled
		}
		log.Error("Error in TTS", "text", u.Text, "err", err)
		return Failed
	}
	if err := s.Output.Play(pcm); err != nil {
		log.Error("Error in TTS", "text", u.Text, "err", err)
		return Failed
	}

	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for s.Output.IsPlaying() {
		select {
		case <-ctx.Done():
			s.stop()
			return Canceled
		case <-ticker.C:
		}
		if s.Control.ConsumeSkip() {
			s.stop()
			log.Info("TTS skipped")
			return Skipped
		}
	}
	return Spoken
}

func (s *Speaker) stop() {
	if err := s.Output.Stop(); err != nil {
		log.Warn("Failed to stop playback", "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
