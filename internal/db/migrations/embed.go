// Package migrations embeds the goose migrations of the capture store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
