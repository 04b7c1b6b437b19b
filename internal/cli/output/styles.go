package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Table   lipgloss.Style
	View    lipgloss.Style
	CTE     lipgloss.Style
	Stub    lipgloss.Style
	Column  lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1),
		Header2: r.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		Table:   r.NewStyle().Bold(true),
		View:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#007acc")),
		CTE:     r.NewStyle().Foreground(lipgloss.Color("#8b5cf6")),
		Stub:    r.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		Column:  r.NewStyle().Foreground(lipgloss.Color("252")),
		Key:     r.NewStyle().Foreground(lipgloss.Color("214")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		Success: r.NewStyle().Foreground(lipgloss.Color("42")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}
