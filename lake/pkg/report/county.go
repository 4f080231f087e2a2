package report

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

type CountyCount struct {
	// County is empty for rows whose county is NULL.
	County    string
	WellCount int
}

// CountByCounty groups the wells table by county. Counties sort ascending with NULL last.
func CountByCounty(ctx context.Context, q store.Queryer, table string) ([]CountyCount, error) {
	query := fmt.Sprintf(`SELECT county, COUNT(*) AS well_count
FROM %s
GROUP BY county
ORDER BY CASE WHEN county IS NULL THEN 1 ELSE 0 END, county`, store.QuoteIdent(table))

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query county counts: %w", err)
	}
	defer rows.Close()

	var out []CountyCount
	for rows.Next() {
		var county sql.NullString
		var n int64
		if err := rows.Scan(&county, &n); err != nil {
			return nil, fmt.Errorf("failed to scan county count: %w", err)
		}
		out = append(out, CountyCount{County: county.String, WellCount: int(n)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate county counts: %w", err)
	}
	return out, nil
}

// CountyTable renders counts as a county,well_count table.
func CountyTable(counts []CountyCount) *dataset.Table {
	t := dataset.New("county", "well_count")
	for _, c := range counts {
		t.Append(c.County, strconv.Itoa(c.WellCount))
	}
	return t
}

// PrintCountyCounts writes a console table of the counts.
func PrintCountyCounts(w io.Writer, counts []CountyCount) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"County", "Wells"})
	total := 0
	for _, c := range counts {
		table.Append([]string{c.County, strconv.Itoa(c.WellCount)})
		total += c.WellCount
	}
	table.SetFooter([]string{"Total", strconv.Itoa(total)})
	table.Render()
}
