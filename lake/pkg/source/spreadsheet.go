package source

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
)

var (
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrColumnNotFound = dataset.ErrColumnNotFound
)

// Production table columns.
const (
	ColumnYearMonth  = "year_month"
	ColumnProduction = "production"
	ColumnState      = "state"
)

// Selector picks a column by header text or by zero-based position. Header wins when both are set.
type Selector struct {
	Index  *int
	Header string
}

func (s Selector) String() string {
	if s.Header != "" {
		return fmt.Sprintf("header %q", s.Header)
	}
	if s.Index != nil {
		return fmt.Sprintf("index %d", *s.Index)
	}
	return "unset selector"
}

type SheetSpec struct {
	Name string
	// SkipRows rows are discarded before the header row.
	SkipRows    int
	DateColumn  Selector
	ValueColumn Selector
}

// ReadProductionWorkbook reads the configured sheets of an xlsx workbook into one table with columns
// year_month, production, state. Sheets are concatenated in the configured order and the state column carries
// the sheet name. Cells are read raw, so date cells come back as spreadsheet serial numbers.
func ReadProductionWorkbook(data []byte, sheets []SheetSpec) (*dataset.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	available := f.GetSheetList()
	out := dataset.New(ColumnYearMonth, ColumnProduction, ColumnState)
	for _, sheet := range sheets {
		if !slices.Contains(available, sheet.Name) {
			return nil, fmt.Errorf("%w: %q (workbook has %s)", ErrSheetNotFound, sheet.Name, strings.Join(available, ", "))
		}
		rows, err := f.GetRows(sheet.Name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet.Name, err)
		}
		part, err := readSheet(rows, sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
		if err := out.Concat(part); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readSheet(rows [][]string, sheet SheetSpec) (*dataset.Table, error) {
	if sheet.SkipRows >= len(rows) {
		return nil, fmt.Errorf("sheet has %d rows, no header after skipping %d", len(rows), sheet.SkipRows)
	}
	header := rows[sheet.SkipRows]
	body := rows[sheet.SkipRows+1:]

	width := len(header)
	for _, r := range body {
		width = max(width, len(r))
	}

	dateIdx, err := resolveColumn(header, width, sheet.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("date column: %w", err)
	}
	valueIdx, err := resolveColumn(header, width, sheet.ValueColumn)
	if err != nil {
		return nil, fmt.Errorf("value column: %w", err)
	}

	out := dataset.New(ColumnYearMonth, ColumnProduction, ColumnState)
	for _, r := range body {
		if blank(r) {
			continue
		}
		out.Append(cell(r, dateIdx), cell(r, valueIdx), sheet.Name)
	}
	return out, nil
}

func resolveColumn(header []string, width int, sel Selector) (int, error) {
	if sel.Header != "" {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(sel.Header)) {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, sel)
	}
	if sel.Index == nil {
		return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, sel)
	}
	if *sel.Index < 0 || *sel.Index >= width {
		return -1, fmt.Errorf("%w: %s out of range (sheet has %d columns)", ErrColumnNotFound, sel, width)
	}
	return *sel.Index, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
