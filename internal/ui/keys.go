package ui

import tea "github.com/charmbracelet/bubbletea"

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

func helpText(springs, gradient bool) string {
	s := "s springs"
	if springs {
		s += " (on)"
	}
	s += "  g gradient"
	if gradient {
		s += " (on)"
	}
	return s + "  q quit"
}
