package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrodata/prodlake/lake/pkg/store"
)

// ListTables returns the user tables visible on q.
func ListTables(ctx context.Context, q store.Queryer) (map[string]bool, error) {
	var query string
	switch q.Driver() {
	case store.SQLite:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	default:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()"
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

// Verify fails with one error naming every expected table that does not exist.
func Verify(ctx context.Context, q store.Queryer, expected ...string) error {
	if len(expected) == 0 {
		return nil
	}
	tables, err := ListTables(ctx, q)
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range expected {
		if !tables[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema validation failed: missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}
