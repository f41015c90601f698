package pipeline

import "embed"

// MigrationsFS holds the schema of every supported backend under
// db/<dialect>/migrations.
//
//go:embed db/postgres/migrations/*.sql db/mysql/migrations/*.sql db/sqlite3/migrations/*.sql db/clickhouse/migrations/*.sql
var MigrationsFS embed.FS
