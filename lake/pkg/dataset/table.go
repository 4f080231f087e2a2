package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var ErrColumnNotFound = errors.New("column not found")

// Table is an in-memory tabular record set. Every row has exactly len(Columns) cells; an empty cell is
// the null marker.
type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(row ...string) {
	out := make([]string, len(t.Columns))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q (have %s)", ErrColumnNotFound, name, strings.Join(t.Columns, ", "))
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Concat appends the rows of other, which must have identical columns.
func (t *Table) Concat(other *Table) error {
	if len(other.Columns) != len(t.Columns) {
		return fmt.Errorf("cannot concat tables with %d and %d columns", len(t.Columns), len(other.Columns))
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return fmt.Errorf("cannot concat tables: column %d is %q and %q", i, t.Columns[i], other.Columns[i])
		}
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// Rename selects the mapped source columns, in mapping order, under their target names. Every source
// column must exist.
func (t *Table) Rename(mapping []Mapping) (*Table, error) {
	indexes := make([]int, len(mapping))
	targets := make([]string, len(mapping))
	var missing []string
	for i, m := range mapping {
		idx, err := t.ColumnIndex(m.Source)
		if err != nil {
			missing = append(missing, m.Source)
			continue
		}
		indexes[i] = idx
		targets[i] = m.Target
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(missing, ", "))
	}

	out := New(targets...)
	out.Rows = make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		selected := make([]string, len(indexes))
		for i, idx := range indexes {
			selected[i] = row[idx]
		}
		out.Rows = append(out.Rows, selected)
	}
	return out, nil
}

type Mapping struct {
	Source string
	Target string
}
