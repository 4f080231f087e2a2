package load

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

const (
	appendBatchSize = 200
	dateLayout      = "2006-01-02"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInteger
	kindFloat
	kindDate
)

func kindOf(databaseType string) columnKind {
	t := strings.ToUpper(databaseType)
	switch {
	case strings.Contains(t, "INT"):
		return kindInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "DOUBLE"), strings.Contains(t, "FLOAT"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return kindFloat
	case t == "DATE":
		return kindDate
	default:
		return kindText
	}
}

// tableColumns returns the destination column kinds keyed by column name.
func tableColumns(ctx context.Context, q store.Queryer, table string) (map[string]columnKind, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+store.QuoteIdent(table)+" WHERE 1 = 0")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}
	cols := make(map[string]columnKind, len(types))
	for _, ct := range types {
		cols[ct.Name()] = kindOf(ct.DatabaseTypeName())
	}
	return cols, rows.Err()
}

// Append inserts every row of t into table, matching columns by name. Empty cells become NULL, as do
// cells that do not parse as the destination column's type. It returns the rows inserted and the
// number of cells coerced to NULL.
func Append(ctx context.Context, q store.Queryer, table string, t *dataset.Table) (int, int, error) {
	if t.Len() == 0 {
		return 0, 0, nil
	}
	cols, err := tableColumns(ctx, q, table)
	if err != nil {
		return 0, 0, err
	}

	kinds := make([]columnKind, len(t.Columns))
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		kind, ok := cols[c]
		if !ok {
			return 0, 0, fmt.Errorf("table %s has no column %q", table, c)
		}
		kinds[i] = kind
		quoted[i] = store.QuoteIdent(c)
	}

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ") + ")"
	prefix := "INSERT INTO " + store.QuoteIdent(table) + " (" + strings.Join(quoted, ", ") + ") VALUES "

	coerced := 0
	for start := 0; start < t.Len(); start += appendBatchSize {
		if err := ctx.Err(); err != nil {
			return start, coerced, err
		}
		end := min(start+appendBatchSize, t.Len())
		batch := t.Rows[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(t.Columns))
		for i, row := range batch {
			placeholders[i] = rowPlaceholder
			for j, cell := range row {
				v, ok := convert(q.Driver(), kinds[j], cell)
				if !ok {
					coerced++
				}
				args = append(args, v)
			}
		}
		if _, err := q.ExecContext(ctx, prefix+strings.Join(placeholders, ", "), args...); err != nil {
			return start, coerced, fmt.Errorf("failed to insert rows %d-%d: %w", start, end-1, err)
		}
	}
	return t.Len(), coerced, nil
}

// convert maps a staging cell to a driver argument. ok is false when a non-empty cell was replaced by
// NULL because it did not parse.
func convert(driver store.Driver, kind columnKind, cell string) (any, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil, true
	}
	switch kind {
	case kindInteger:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return nil, false
	case kindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case kindDate:
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, false
		}
		return dateArg(driver, d), true
	default:
		return cell, true
	}
}

// dateArg keeps sqlite dates in their ISO text form; the other drivers bind a time.Time.
func dateArg(driver store.Driver, d time.Time) any {
	if driver == store.SQLite {
		return d.Format(dateLayout)
	}
	return d
}
