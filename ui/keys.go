package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/dgnsrekt/chattts/internal/hotkey"
)

type keyMap struct {
	ToggleSpeech key.Binding
	Skip         key.Binding
	TogglePrefix key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func newKeyMap(b hotkey.Bindings) keyMap {
	binding := func(k, desc string) key.Binding {
		if k == "" {
			return key.NewBinding(key.WithDisabled())
		}
		k = hotkey.Normalize(k)
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
	}
	return keyMap{
		ToggleSpeech: binding(b.ToggleSpeech, "speech on/off"),
		Skip:         binding(b.Skip, "skip"),
		TogglePrefix: binding(b.TogglePrefix, "prefix on/off"),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Skip, k.ToggleSpeech, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ToggleSpeech, k.TogglePrefix},
		{k.Skip},
		{k.Help, k.Quit},
	}
}
