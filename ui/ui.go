// Package ui provides the terminal status line for chattts. It shows what
// is being spoken and turns key presses into operator actions.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/control"
	"github.com/dgnsrekt/chattts/internal/hotkey"
	"github.com/dgnsrekt/chattts/internal/intake"
	"github.com/dgnsrekt/chattts/internal/speaker"
	"github.com/muesli/reflow/truncate"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

// SpeakingMsg is sent when an utterance starts.
type SpeakingMsg struct {
	Utterance intake.Utterance
}

// IdleMsg is sent when an utterance ends.
type IdleMsg struct {
	Utterance intake.Utterance
	Outcome   speaker.Outcome
}

// HeartbeatMsg carries the cumulative intake counters.
type HeartbeatMsg struct {
	Stats intake.Stats
}

type statusMessageTimeoutMsg struct{ seq int }

// NewProgram returns a status-line program bound to ctx.
func NewProgram(ctx context.Context, cfg Config, ctrl *control.Control, disp *hotkey.Dispatcher, b hotkey.Bindings) *tea.Program {
	log.Debug("Starting status line", "alt_screen", cfg.AltScreen)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(ctrl, disp, b), opts...)
}

type model struct {
	ctrl *control.Control
	disp *hotkey.Dispatcher
	keys keyMap
	help help.Model

	width int

	current *intake.Utterance
	spoken  int
	skipped int
	failed  int
	stats   intake.Stats
	message string
	msgSeq  int
}

func newModel(ctrl *control.Control, disp *hotkey.Dispatcher, b hotkey.Bindings) model {
	return model{
		ctrl:  ctrl,
		disp:  disp,
		keys:  newKeyMap(b),
		help:  help.New(),
		width: 80,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		k := msg.String()
		if _, bound := m.disp.Lookup(k); bound {
			if a, ok := m.disp.Handle(k); ok {
				cmd := m.flash(m.describe(a))
				return m, cmd
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case SpeakingMsg:
		u := msg.Utterance
		m.current = &u

	case IdleMsg:
		m.current = nil
		switch msg.Outcome {
		case speaker.Spoken:
			m.spoken++
		case speaker.Skipped:
			m.skipped++
		case speaker.Failed:
			m.failed++
		}

	case HeartbeatMsg:
		m.stats = msg.Stats

	case statusMessageTimeoutMsg:
		if msg.seq == m.msgSeq {
			m.message = ""
		}
	}
	return m, nil
}

// flash shows text in the status bar for a few seconds.
func (m *model) flash(text string) tea.Cmd {
	m.message = text
	m.msgSeq++
	seq := m.msgSeq
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{seq: seq}
	})
}

func (m model) describe(a hotkey.Action) string {
	s := m.ctrl.Snapshot()
	switch a {
	case hotkey.ToggleSpeech:
		return fmt.Sprintf("Speech enabled: %t", s.SpeechEnabled)
	case hotkey.TogglePrefix:
		if s.PrefixEnabled {
			return fmt.Sprintf("Prefix required: %s", s.ActivePrefix)
		}
		return "Prefix off: every message is read"
	case hotkey.Skip:
		return "Skipped"
	}
	return ""
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.statusBarView())
	b.WriteRune('\n')
	b.WriteString(m.currentView())
	b.WriteRune('\n')
	b.WriteString(helpViewStyle(m.help.View(m.keys)))
	return b.String()
}

func (m model) statusBarView() string {
	s := m.ctrl.Snapshot()

	speech := statusBarOffStyle(" ○ speech off ")
	if s.SpeechEnabled {
		speech = statusBarOnStyle(" ● speech on ")
	}
	prefix := statusBarNoteStyle(" prefix off ")
	if s.PrefixEnabled {
		prefix = statusBarNoteStyle(" prefix " + s.ActivePrefix + " ")
	}
	count := fmt.Sprintf(" %d spoken · %d skipped · %d filtered ", m.spoken, m.skipped, m.stats.Filtered)
	if m.failed > 0 {
		count += fmt.Sprintf("· %d failed ", m.failed)
	}
	counters := statusBarCounterStyle(count)

	left := speech + prefix
	if m.message != "" {
		left += statusBarMessageStyle(" " + m.message + " ")
	}

	gap := m.width - visibleWidth(left) - visibleWidth(counters)
	if gap < 0 {
		gap = 0
	}
	return left + statusBarNoteStyle(strings.Repeat(" ", gap)) + counters
}

func (m model) currentView() string {
	if m.current == nil {
		return idleStyle("Waiting for messages" + ellipsis)
	}
	text := m.current.Text
	if m.width > 4 {
		text = truncate.StringWithTail(text, uint(m.width-2), ellipsis)
	}
	return speakingStyle("▶ " + text)
}

// Notifier forwards pipeline events to a running program.
type Notifier struct {
	p *tea.Program
}

// NewNotifier returns a Notifier for p.
func NewNotifier(p *tea.Program) *Notifier {
	return &Notifier{p: p}
}

// Hooks returns speaker hooks that update the status line.
func (n *Notifier) Hooks() speaker.Hooks {
	return speaker.Hooks{
		OnSpeak: func(u intake.Utterance) {
			n.p.Send(SpeakingMsg{Utterance: u})
		},
		OnDone: func(u intake.Utterance, o speaker.Outcome) {
			n.p.Send(IdleMsg{Utterance: u, Outcome: o})
		},
	}
}

// Heartbeat reports cumulative intake counters.
func (n *Notifier) Heartbeat(s intake.Stats) {
	n.p.Send(HeartbeatMsg{Stats: s})
}
