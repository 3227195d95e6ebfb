// Package scripts bundles Risor scripts that ship with tsls. They run
// through internal/runtime, e.g. `tsls run roundtrip.risor ./src`.
package scripts

import "embed"

// FS holds the bundled scripts and the modules they import.
//
//go:embed *.risor
var FS embed.FS
