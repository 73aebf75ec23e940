// Package tui provides a Bubble Tea progress view for scroll runs.
// styles.go defines lipgloss styles for the panels and status indicators.
package tui

import "github.com/charmbracelet/lipgloss"

// Panel border and title styles.
var (
	// panelStyle defines the base panel with a rounded border.
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#52525B")).
			Padding(0, 1)

	// titleStyle formats panel titles.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0F766E")).
			Padding(0, 1)
)

// Phase color styles.
var (
	phaseActive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)

	phaseDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22C55E")).
			Bold(true)

	phaseFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E11D48")).
			Bold(true)
)

// Progress bar styles.
var (
	barFilled = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6"))

	barEmpty = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525B"))
)

// Label and value styles for key-value pairs.
var (
	// labelStyle formats labels in key-value displays.
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A1A1AA")).
			Width(12)

	// valueStyle formats values in key-value displays.
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))
)

// Footer and help styles.
var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717A"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#14B8A6")).
			Bold(true)
)
