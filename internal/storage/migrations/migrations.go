// migrations содержит встроенные SQL-миграции схемы token-service.
// Применяются через goose при старте сервиса (см. storage/postgres.Migrate).
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
