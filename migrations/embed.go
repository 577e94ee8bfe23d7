// migrations содержит SQL-миграции goose, встроенные в бинарь.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
