// Package queries embeds the bundled tree-sitter query assets, laid out as
// "<language>/<kind>.scm".
package queries

import "embed"

//go:embed */*.scm
var FS embed.FS
