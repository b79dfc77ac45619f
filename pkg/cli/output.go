package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/apirisk/apirisk/pkg/jsonutil"
)

// PrintJSON writes v to w as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cli: encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteJSONFile writes v to path as indented JSON.
func WriteJSONFile(path string, v any) error {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cli: encoding JSON: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cli: writing %s: %w", path, err)
	}
	return nil
}
