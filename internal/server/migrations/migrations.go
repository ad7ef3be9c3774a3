// Package migrations embeds the goose SQL migrations for the session service.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
