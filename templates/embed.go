// Package templates embeds the bundled report templates for distribution.
//
// Embedding keeps report rendering self-contained regardless of
// installation method (Docker, go install, or a downloaded binary): the
// binary never depends on an on-disk templates directory.
package templates

import "embed"

// FS contains the bundled report templates. File names follow
// <document>.<format>.tmpl.
//
//go:embed *.tmpl
var FS embed.FS
