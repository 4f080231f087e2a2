package lake

import "embed"

// SchemaFS holds the default destination DDL, one script per store driver (schema/<driver>.sql).
//
//go:embed schema/*.sql
var SchemaFS embed.FS
