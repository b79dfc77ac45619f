package main

import (
	"fmt"
	"os"

	"github.com/apirisk/apirisk/pkg/defaults"
	"github.com/apirisk/apirisk/pkg/ui"
)

// exitWithError prints a formatted error message and exits with the
// internal error code. Use for unexpected failures (I/O, encoding).
func exitWithError(format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(defaults.ExitInternalError)
}

// exitWithUserError prints a formatted error message and exits with the
// user error code. Use for bad input: missing files, malformed documents,
// invalid flag values.
func exitWithUserError(format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(defaults.ExitUserError)
}

// exitWithUsage prints an error message followed by a usage hint, then
// exits with the user error code.
func exitWithUsage(msg, usage string) {
	ui.PrintError(msg)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:", usage)
	os.Exit(defaults.ExitUserError)
}
