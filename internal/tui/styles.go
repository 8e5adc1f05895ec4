package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	Primary = lipgloss.Color("#7C3AED")
	Accent  = lipgloss.Color("#F59E0B")
	Success = lipgloss.Color("#10B981")
	Error   = lipgloss.Color("#EF4444")

	TextPrimary = lipgloss.Color("#F9FAFB")
	TextMuted   = lipgloss.Color("#6B7280")

	BorderNormal = lipgloss.Color("#374151")
	BorderActive = lipgloss.Color("#7C3AED")
)

// Styles groups every style the editor view uses.
type Styles struct {
	Title    lipgloss.Style
	Date     lipgloss.Style
	Badge    lipgloss.Style
	Streak   lipgloss.Style
	Heading  lipgloss.Style
	Checkbox lipgloss.Style
	Done     lipgloss.Style
	Bullet   lipgloss.Style
	Hint     lipgloss.Style
	Caret    lipgloss.Style
	Gutter   lipgloss.Style
	Drop     lipgloss.Style
	Menu     lipgloss.Style
	MenuItem lipgloss.Style
	MenuSel  lipgloss.Style
	Saved    lipgloss.Style
	Failed   lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles is the dark theme.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Date:     lipgloss.NewStyle().Foreground(TextPrimary),
		Badge:    lipgloss.NewStyle().Foreground(Accent).Bold(true),
		Streak:   lipgloss.NewStyle().Foreground(Success),
		Heading:  lipgloss.NewStyle().Bold(true).Foreground(TextPrimary),
		Checkbox: lipgloss.NewStyle().Foreground(Primary),
		Done:     lipgloss.NewStyle().Foreground(TextMuted).Strikethrough(true),
		Bullet:   lipgloss.NewStyle().Foreground(Primary),
		Hint:     lipgloss.NewStyle().Foreground(TextMuted).Italic(true),
		Caret:    lipgloss.NewStyle().Reverse(true),
		Gutter:   lipgloss.NewStyle().Foreground(TextMuted),
		Drop:     lipgloss.NewStyle().Foreground(Accent),
		Menu: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderActive).
			Padding(0, 1),
		MenuItem: lipgloss.NewStyle().Foreground(TextPrimary),
		MenuSel:  lipgloss.NewStyle().Foreground(TextPrimary).Background(BorderNormal).Bold(true),
		Saved:    lipgloss.NewStyle().Foreground(Success),
		Failed:   lipgloss.NewStyle().Foreground(Error).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(TextMuted),
	}
}
