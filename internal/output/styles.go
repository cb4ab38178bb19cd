package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/manager"
)

// Color palette: one lime accent plus status colors.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
	ColorCyan     = "81"
)

// Styles holds the lipgloss styles used for CLI rendering.
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Border  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Created  lipgloss.Style
	Modified lipgloss.Style
	Deleted  lipgloss.Style
	Renamed  lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),

		Created:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Modified: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Deleted:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Renamed:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain, Label: plain, Dim: plain, Border: plain,
		Success: plain, Warning: plain, Error: plain,
		Created: plain, Modified: plain, Deleted: plain, Renamed: plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// EventType returns the style for an event type.
func (s Styles) EventType(t ledger.EventType) lipgloss.Style {
	switch t {
	case ledger.Created:
		return s.Created
	case ledger.Modified:
		return s.Modified
	case ledger.Deleted:
		return s.Deleted
	case ledger.Renamed:
		return s.Renamed
	default:
		return s.Label
	}
}

// Status returns the style for a watcher status.
func (s Styles) Status(st manager.Status) lipgloss.Style {
	switch st {
	case manager.StatusActive:
		return s.Success
	case manager.StatusError:
		return s.Error
	case manager.StatusStarting:
		return s.Warning
	default:
		return s.Dim
	}
}
