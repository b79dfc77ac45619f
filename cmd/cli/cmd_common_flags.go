package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/apirisk/apirisk/pkg/ui"
)

// CommonFlags holds output flags shared across the apirisk commands.
// Use Register to bind them to a command's flag.FlagSet.
type CommonFlags struct {
	JSON    bool
	Output  string
	Silent  bool
	NoColor bool
	Verbose bool
}

// Register binds the common flags to the given FlagSet.
func (cf *CommonFlags) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cf.JSON, "json", false, "Print machine-readable JSON to stdout")
	fs.StringVar(&cf.Output, "output", "", "Write JSON results to a file")
	fs.StringVar(&cf.Output, "o", "", "Write JSON results to a file (alias)")
	fs.BoolVar(&cf.Silent, "silent", false, "Suppress banner and progress output")
	fs.BoolVar(&cf.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cf.Verbose, "verbose", false, "Verbose output")
}

// Apply pushes the UI flags into the global ui state. Call once, right
// after flag parsing.
func (cf *CommonFlags) Apply() {
	ui.SetSilent(cf.Silent)
	ui.SetNoColor(cf.NoColor)
}

// Logger returns the slog logger passed into library packages: debug
// level on -verbose, warnings only otherwise. Library logs go to stderr
// so stdout stays reserved for results.
func (cf *CommonFlags) Logger() *slog.Logger {
	level := slog.LevelWarn
	if cf.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
