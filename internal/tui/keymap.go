package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the editor's command keys. Typing, Enter, Backspace and the
// arrows go to the editor directly and are not listed.
type keyMap struct {
	Save     key.Binding
	Toggle   key.Binding
	Append   key.Binding
	Paste    key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Navigate key.Binding
	Reload   key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle"),
		),
		Append: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new block"),
		),
		Paste: key.NewBinding(
			key.WithKeys("ctrl+v"),
			key.WithHelp("ctrl+v", "paste"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("ctrl+up", "alt+up"),
			key.WithHelp("ctrl+↑/↓", "move block"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("ctrl+down", "alt+down"),
		),
		Navigate: key.NewBinding(
			key.WithKeys("up", "down"),
			key.WithHelp("↑/↓", "scroll"),
			key.WithDisabled(),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload"),
			key.WithDisabled(),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// setReadOnly disables every editing binding.
func (k *keyMap) setReadOnly(ro bool) {
	for _, b := range []*key.Binding{&k.Save, &k.Toggle, &k.Append, &k.Paste, &k.MoveUp, &k.MoveDown} {
		b.SetEnabled(!ro)
	}
	k.Navigate.SetEnabled(ro)
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reload, k.Save, k.Toggle, k.MoveUp, k.Paste, k.Navigate, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Save, k.Reload, k.Paste, k.Quit},
		{k.Toggle, k.Append, k.MoveUp, k.MoveDown},
	}
}

var _ help.KeyMap = keyMap{}

func newHelp(s Styles) help.Model {
	h := help.New()
	h.Styles.ShortKey = s.Help.Bold(true)
	h.Styles.ShortDesc = s.Help
	h.Styles.ShortSeparator = s.Gutter
	h.Styles.FullKey = s.Help.Bold(true)
	h.Styles.FullDesc = s.Help
	h.Styles.FullSeparator = s.Gutter
	return h
}
