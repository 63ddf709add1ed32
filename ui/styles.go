package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	faint     = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarOnStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Bold(true).
				Render

	statusBarOffStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(red).
				Bold(true).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarCounterStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	speakingStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Render

	idleStyle = lipgloss.NewStyle().
			Foreground(faint).
			Italic(true).
			Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Render
)

func visibleWidth(s string) int {
	return lipgloss.Width(s)
}
