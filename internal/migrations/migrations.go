// Package migrations embeds the goose SQL migrations that provision the
// relational schema the account store relies on.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
