// Package frontend embeds the built frontend assets.
package frontend

import "embed"

// Files contains the built frontend assets.
//
//go:embed dist
var Files embed.FS
