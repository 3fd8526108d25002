// Package migrations embeds the SQL schema for the access-code tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
