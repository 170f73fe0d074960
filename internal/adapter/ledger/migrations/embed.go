// Package migrations embeds SQL migration files for the incident ledger.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
