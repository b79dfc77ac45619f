// Package iohelper provides bounded-read helpers for documents arriving
// from pipes and files, so a malformed or hostile input cannot exhaust
// memory.
package iohelper

import "io"

// Standard size limits for different document classes
const (
	// SmallMaxBodySize is for manifests and config files (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// MediumMaxBodySize is for typical rule files (100KB)
	MediumMaxBodySize int64 = 100 * 1024

	// DefaultMaxBodySize is for general documents (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024

	// LargeMaxBodySize is for route snapshots and evidence exports (10MB)
	LargeMaxBodySize int64 = 10 * 1024 * 1024
)

// ReadBody reads from an io.Reader with a size limit. If r is nil, an
// empty slice and no error are returned.
//
// Usage:
//
//	data, err := iohelper.ReadBody(os.Stdin, iohelper.LargeMaxBodySize)
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}
