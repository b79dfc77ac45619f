package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/apirisk/apirisk/pkg/ui.Version=1.0.0"
var (
	Version   = "1.2.0"
	BuildDate = "2026-08-25"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		// Use ASCII profile to disable colors
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// Minimalist banner (ffuf-style box)
const miniBanner = `
________________________________________________

 apirisk v%s
________________________________________________`

// Separator line
const bannerSeparator = "________________________________________________"

// PrintMiniBanner prints the minimal banner (ffuf-style box) to stderr.
func PrintMiniBanner() {
	if IsSilent() {
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", BannerStyle.Render(fmt.Sprintf(miniBanner, Version)))
	fmt.Fprintln(os.Stderr)
}

// printOption prints a configuration option in ffuf/nuclei style
// Format:  :: Option              : Value
func printOption(name, value string) {
	fmt.Fprintf(os.Stderr, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintConfigBanner prints the effective settings before a command runs,
// ordered keys first for consistent display.
func PrintConfigBanner(options map[string]string) {
	if IsSilent() {
		return
	}

	order := []string{
		"Target", "Routes", "Rules", "Custom Rules", "Disabled Rules",
		"Severity Overrides", "Scoring Config", "Run", "Runs Dir",
		"Output", "Format",
	}

	printed := make(map[string]bool)
	for _, name := range order {
		if value, ok := options[name]; ok && value != "" {
			printOption(name, value)
			printed[name] = true
		}
	}

	// Print any remaining options not in the order list
	for name, value := range options {
		if !printed[name] && value != "" {
			printOption(name, value)
		}
	}

	fmt.Fprintf(os.Stderr, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// PrintDivider prints a stylized divider (to stderr)
func PrintDivider() {
	if IsSilent() {
		return
	}
	divider := strings.Repeat("-", 75)
	fmt.Fprintln(os.Stderr, DividerStyle.Render(divider))
}

// PrintSection prints a section header (to stderr)
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfigLine prints a single key/value config line inside a command,
// indented below the section header.
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	Fprintf(os.Stderr, "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// PrintError prints an error message to stderr, bold red on terminals.
func PrintError(msg string) {
	Fprintf(os.Stderr, "%s %s\n", FailStyle.Render("[!]"), msg)
}

// PrintWarning prints a warning message to stderr. Warnings are not
// suppressed by silent mode.
func PrintWarning(msg string) {
	Fprintf(os.Stderr, "%s %s\n", WarnStyle.Render("[!]"), msg)
}

// PrintInfo prints an informational line to stderr unless silent.
func PrintInfo(msg string) {
	if IsSilent() {
		return
	}
	Fprintf(os.Stderr, "  %s %s\n", StatLabelStyle.Render("*"), msg)
}

// PrintSuccess prints a success message to stderr unless silent.
func PrintSuccess(msg string) {
	if IsSilent() {
		return
	}
	Fprintf(os.Stderr, "%s %s\n", OkStyle.Render(Icon("✓", "[+]")), msg)
}
