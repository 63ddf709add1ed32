// Package control holds the operator-mutable switches the pipeline reads
// every cycle, plus the skip flag used to cut playback short.
package control

import (
	"sync/atomic"
)

// DefaultPrefix is the command prefix a message must start with when the
// prefix requirement is on.
const DefaultPrefix = "!tts"

// State is a consistent snapshot of the control switches. Values are never
// mutated after being published.
type State struct {
	SpeechEnabled bool
	PrefixEnabled bool
	ActivePrefix  string
}

// Control publishes State snapshots atomically. Writers swap whole
// snapshots so readers never see a half-applied change.
type Control struct {
	prefix string
	state  atomic.Pointer[State]
	skip   atomic.Bool
}

// New creates a Control. prefix is the literal restored whenever the
// prefix requirement is switched back on; an empty prefix falls back to
// DefaultPrefix.
func New(prefix string, speechEnabled, prefixEnabled bool) *Control {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	c := &Control{prefix: prefix}
	s := &State{SpeechEnabled: speechEnabled, PrefixEnabled: prefixEnabled}
	if prefixEnabled {
		s.ActivePrefix = prefix
	}
	c.state.Store(s)
	return c
}

// Prefix returns the configured prefix literal.
func (c *Control) Prefix() string {
	return c.prefix
}

// Snapshot returns the current state.
func (c *Control) Snapshot() State {
	return *c.state.Load()
}

func (c *Control) update(fn func(State) State) State {
	for {
		old := c.state.Load()
		next := fn(*old)
		if c.state.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// ToggleSpeech flips speech on or off and returns the new state.
func (c *Control) ToggleSpeech() State {
	return c.update(func(s State) State {
		s.SpeechEnabled = !s.SpeechEnabled
		return s
	})
}

// SetSpeech turns speech on or off.
func (c *Control) SetSpeech(enabled bool) State {
	return c.update(func(s State) State {
		s.SpeechEnabled = enabled
		return s
	})
}

// TogglePrefix flips the prefix requirement. Enabling restores the
// configured literal; disabling clears the active prefix so every message
// is eligible.
func (c *Control) TogglePrefix() State {
	return c.update(func(s State) State {
		s.PrefixEnabled = !s.PrefixEnabled
		if s.PrefixEnabled {
			s.ActivePrefix = c.prefix
		} else {
			s.ActivePrefix = ""
		}
		return s
	})
}

// RequestSkip asks for the current utterance to stop. Repeated requests
// before the flag is consumed collapse into one.
func (c *Control) RequestSkip() {
	c.skip.Store(true)
}

// SkipRequested reports whether a skip is pending.
func (c *Control) SkipRequested() bool {
	return c.skip.Load()
}

// ConsumeSkip clears a pending skip and reports whether one was set.
func (c *Control) ConsumeSkip() bool {
	return c.skip.Swap(false)
}

// ResetSkip drops any pending skip.
func (c *Control) ResetSkip() {
	c.skip.Store(false)
}
