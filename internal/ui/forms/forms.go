// Package forms holds the huh form settings shared by the views.
package forms

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// KeyMap is the huh key map with esc added to abort a form.
func KeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel"))
	return km
}

// Width clamps a form width to the terminal.
func Width(termWidth int) int {
	w := termWidth - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// Height clamps a form height to the terminal.
func Height(termHeight int) int {
	h := termHeight - 4
	if h < 10 {
		h = 10
	}
	return h
}

// Update forwards msg to f and reports its state afterwards.
func Update(f *huh.Form, msg tea.Msg) (*huh.Form, tea.Cmd, huh.FormState) {
	if f == nil {
		return nil, nil, huh.StateAborted
	}
	mdl, cmd := f.Update(msg)
	if next, ok := mdl.(*huh.Form); ok {
		f = next
	}
	return f, cmd, f.State
}
