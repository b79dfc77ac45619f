package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ANSI escape codes for simple terminal output (CLI commands)
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	BoldRed = "\033[1;31m"
)

// Color palette
var (
	// Brand colors
	Primary   = lipgloss.Color("#7D56F4") // Purple
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors (matching OWASP conventions)
	Critical = lipgloss.Color("#FF0000") // Bright red
	High     = lipgloss.Color("#FF6B6B") // Red/Orange
	Medium   = lipgloss.Color("#FFD93D") // Yellow
	Low      = lipgloss.Color("#6BCB77") // Green

	// Priority band colors
	BandP0 = lipgloss.Color("#FF0000")
	BandP1 = lipgloss.Color("#FF6B6B")
	BandP2 = lipgloss.Color("#FFD93D")
	BandP3 = lipgloss.Color("#6BCB77")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Banner style
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// Version badge
	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Section headers
	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	// Configuration display
	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	// Statistics
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	// Bracketed metadata (nuclei-style)
	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Rule/risk source badge
	SourceStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	// Success and failure markers
	OkStyle = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	// Divider
	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Help/footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// URL style
	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	// Category badge
	CategoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)
)

// SeverityStyle returns the style for a severity level ("critical",
// "high", "medium", "low"; case-insensitive).
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch strings.ToLower(severity) {
	case "critical":
		return base.Foreground(Critical)
	case "high":
		return base.Foreground(High)
	case "medium":
		return base.Foreground(Medium)
	case "low":
		return base.Foreground(Low)
	default:
		return base.Foreground(Muted)
	}
}

// BandStyle returns the style for a priority band ("P0".."P3").
// Unknown bands render muted so custom band names stay readable.
func BandStyle(band string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch band {
	case "P0":
		return base.Foreground(BandP0)
	case "P1":
		return base.Foreground(BandP1)
	case "P2":
		return base.Foreground(BandP2)
	case "P3":
		return base.Foreground(BandP3)
	default:
		return base.Foreground(Muted)
	}
}

// ScoreStyle returns a style scaled to the aggregate risk score, using
// the same thresholds the default scoring bands use.
func ScoreStyle(score float64) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case score >= 80:
		return base.Foreground(Critical)
	case score >= 65:
		return base.Foreground(High)
	case score >= 50:
		return base.Foreground(Medium)
	default:
		return base.Foreground(Low)
	}
}
