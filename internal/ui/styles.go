package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/jp-hoehmann/bun/internal/theme"
)

// Color palette
var (
	// Primary is the accent colour; ApplyScheme replaces it.
	Primary    = lipgloss.Color("#2196f3") // Blue
	Secondary  = lipgloss.Color("#7C3AED") // Violet
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
	Background = lipgloss.Color("#111827") // Dark gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle = tableCellStyle.Foreground(lipgloss.Color("255"))

	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

// Layout styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)

	FooterStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

// SpinnerStyle colours spinner frames.
var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

// ApplyScheme makes scheme the accent colour of every themed style.
func ApplyScheme(scheme theme.Scheme) {
	Primary = lipgloss.Color(scheme.Color())
	TitleStyle = TitleStyle.Foreground(Primary)
	TableHeaderStyle = TableHeaderStyle.Foreground(Primary)
	PanelStyle = PanelStyle.BorderForeground(Primary)
	SpinnerStyle = SpinnerStyle.Foreground(Primary)
}

// NavStyle is the navigation bar coloured with scheme. Text on inverted
// schemes is light, otherwise dark.
func NavStyle(scheme theme.Scheme) lipgloss.Style {
	fg := lipgloss.Color("#000000")
	if scheme.Inverted {
		fg = lipgloss.Color("#ffffff")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(fg).
		Background(lipgloss.Color(scheme.Color())).
		Padding(0, 1)
}

// Icons
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconConnect = "🔌"
	IconRecord  = "🔴"
	IconBoard   = "🖍️"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}

func FormatError(err error) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(err.Error()))
}
