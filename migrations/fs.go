// Package migrations embeds the checkout engine's schema migrations.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
