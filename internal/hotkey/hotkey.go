// Package hotkey maps key presses to operator actions on the control state.
package hotkey

import (
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/control"
	"golang.org/x/time/rate"
)

// Action is an operator command bound to a key.
type Action int

const (
	ToggleSpeech Action = iota + 1
	Skip
	TogglePrefix
)

func (a Action) String() string {
	switch a {
	case ToggleSpeech:
		return "toggle speech"
	case Skip:
		return "skip"
	case TogglePrefix:
		return "toggle prefix"
	default:
		return "none"
	}
}

// DefaultDebounce is the minimum time between two firings of a toggle.
const DefaultDebounce = 250 * time.Millisecond

// Bindings holds the key chord for each action, in bubbletea's key
// spelling ("ctrl+alt+t", ";").
type Bindings struct {
	ToggleSpeech string `mapstructure:"toggle_speech" yaml:"toggle_speech"`
	Skip         string `mapstructure:"skip" yaml:"skip"`
	TogglePrefix string `mapstructure:"toggle_prefix" yaml:"toggle_prefix"`
}

// DefaultBindings returns the stock key layout.
func DefaultBindings() Bindings {
	return Bindings{
		ToggleSpeech: "ctrl+alt+t",
		Skip:         ";",
		TogglePrefix: "ctrl+alt+p",
	}
}

var modifierOrder = []string{"ctrl", "alt", "shift"}

// Normalize returns key with its modifiers in a fixed order and lower
// case, so "Alt+Ctrl+T" and "ctrl+alt+t" compare equal. A bare "+" key is
// left alone.
func Normalize(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == "+" || !strings.Contains(key, "+") {
		return key
	}

	parts := strings.Split(key, "+")
	base := parts[len(parts)-1]
	if base == "" {
		// "ctrl++" binds the plus key itself.
		base = "+"
		parts = parts[:len(parts)-1]
	}

	var mods []string
	for _, p := range parts[:len(parts)-1] {
		if p != "" && !slices.Contains(mods, p) {
			mods = append(mods, p)
		}
	}
	slices.SortFunc(mods, func(a, b string) int {
		return rank(a) - rank(b)
	})
	return strings.Join(append(mods, base), "+")
}

func rank(mod string) int {
	if i := slices.Index(modifierOrder, mod); i >= 0 {
		return i
	}
	return len(modifierOrder)
}

// Dispatcher applies key presses to a control.Control. Handle is safe to
// call from any goroutine and never blocks.
type Dispatcher struct {
	ctrl     *control.Control
	actions  map[string]Action
	limiters map[Action]*rate.Limiter
}

// NewDispatcher builds a dispatcher for b. Empty bindings are unbound.
// A debounce of zero disables debouncing.
func NewDispatcher(ctrl *control.Control, b Bindings, debounce time.Duration) *Dispatcher {
	d := &Dispatcher{
		ctrl:     ctrl,
		actions:  make(map[string]Action, 3),
		limiters: make(map[Action]*rate.Limiter, 2),
	}
	for key, a := range map[string]Action{
		b.ToggleSpeech: ToggleSpeech,
		b.Skip:         Skip,
		b.TogglePrefix: TogglePrefix,
	} {
		if k := Normalize(key); k != "" {
			d.actions[k] = a
		}
	}
	if debounce > 0 {
		d.limiters[ToggleSpeech] = rate.NewLimiter(rate.Every(debounce), 1)
		d.limiters[TogglePrefix] = rate.NewLimiter(rate.Every(debounce), 1)
	}
	return d
}

// Lookup returns the action bound to key without performing it.
func (d *Dispatcher) Lookup(key string) (Action, bool) {
	a, ok := d.actions[Normalize(key)]
	return a, ok
}

// Handle performs the action bound to key. It reports false when the key is
// unbound or the toggle was debounced.
func (d *Dispatcher) Handle(key string) (Action, bool) {
	a, ok := d.Lookup(key)
	if !ok {
		return 0, false
	}
	if l, limited := d.limiters[a]; limited && !l.Allow() {
		log.Debug("Debounced key", "key", key, "action", a)
		return a, false
	}

	switch a {
	case ToggleSpeech:
		s := d.ctrl.ToggleSpeech()
		log.Infof("Speech enabled: %t", s.SpeechEnabled)
	case Skip:
		d.ctrl.RequestSkip()
		log.Info("Skip requested")
	case TogglePrefix:
		s := d.ctrl.TogglePrefix()
		log.Infof("Prefix: %t, current prefix: %q", s.PrefixEnabled, s.ActivePrefix)
	}
	return a, true
}
