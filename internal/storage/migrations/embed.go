package migrations

import "embed"

// PostgresFS holds the reference and run-output schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the bar schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
