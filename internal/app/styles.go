package app

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles defines the visual styles used across CLI output.
// These are initialized once and respect terminal capabilities.
var Styles = initStyles()

type styles struct {
	// Headers and titles
	Header lipgloss.Style

	// Operation IDs, API names
	Key lipgloss.Style

	// Descriptions and secondary text
	Dim lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// HTTP method badge
	Method lipgloss.Style

	Bullet lipgloss.Style
}

func initStyles() styles {
	// Respect NO_COLOR env var (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		plain := lipgloss.NewStyle()
		return styles{
			Header:  plain,
			Key:     plain,
			Dim:     plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Method:  plain,
			Bullet:  plain,
		}
	}

	return styles{
		Header:  lipgloss.NewStyle().Bold(true),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")), // Cyan
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")), // Gray
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // Green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")), // Yellow
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // Red
		Method:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")).Width(7),
		Bullet:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")), // Gray
	}
}
