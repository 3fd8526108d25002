package ui

import "embed"

// Dist embeds the placeholder page served when no static UI directory is
// configured.
//
//go:embed all:dist
var Dist embed.FS
