package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leaplg/internal/lg"
)

// Styles holds the lipgloss styles used in text output.
type Styles struct {
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles creates styles bound to a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// Severity renders a diagnostic severity padded to a fixed width.
func (s *Styles) Severity(sev lg.Severity) string {
	switch sev {
	case lg.SeverityError:
		return s.Error.Render("error  ")
	case lg.SeverityWarning:
		return s.Warning.Render("warning")
	default:
		return s.Muted.Render("unknown")
	}
}
