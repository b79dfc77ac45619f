package input

import (
	"fmt"
	"os"
	"strings"

	"github.com/apirisk/apirisk/pkg/iohelper"
	"github.com/apirisk/apirisk/pkg/route"
)

// RouteSource consolidates the ways a command receives a route snapshot:
// an explicit file path or a document piped on stdin.
type RouteSource struct {
	File  string // From -routes flag
	Stdin bool   // Read a JSON or YAML document from stdin
}

// Load resolves the source and returns the parsed routes. A file takes
// precedence over stdin when both are given.
func (rs *RouteSource) Load() ([]route.Route, error) {
	if rs.File != "" {
		return route.LoadFile(rs.File)
	}

	if rs.Stdin {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			// Not a pipe
			return nil, fmt.Errorf("input: -stdin set but nothing is piped")
		}
		data, err := iohelper.ReadBody(os.Stdin, iohelper.LargeMaxBodySize)
		if err != nil {
			return nil, fmt.Errorf("input: reading stdin: %w", err)
		}
		return ParseRoutes(data)
	}

	return nil, fmt.Errorf("input: no route source specified")
}

// Describe returns a short label for config banners: the file path or
// "stdin".
func (rs *RouteSource) Describe() string {
	if rs.File != "" {
		return rs.File
	}
	if rs.Stdin {
		return "stdin"
	}
	return ""
}

// ParseRoutes parses a route document of unknown format. JSON is detected
// by a leading brace or bracket; everything else is treated as YAML.
func ParseRoutes(data []byte) ([]route.Route, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return route.LoadJSON(data)
	}
	return route.LoadYAML(data)
}
