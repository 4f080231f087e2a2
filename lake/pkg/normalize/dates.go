package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the canonical output form of a coerced date.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"Jan-2006",
	"Jan 2006",
	"Jan-06",
	"January 2006",
	"January-2006",
	"2006Jan",
	"2006-Jan",
}

// Serial day numbers outside this range are not treated as spreadsheet dates (9999-12-31 is the
// largest date a workbook can hold).
const (
	minSerial = 1
	maxSerial = 2958465
)

// CoerceDate parses a raw date cell into the first day of its month. Spreadsheet serials, bare years
// and the textual layouts above are accepted. Anything else yields ok=false, the null marker.
func CoerceDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		if v == math.Trunc(v) && v >= 1800 && v <= 2200 && len(raw) == 4 {
			return firstOfMonth(time.Date(int(v), time.January, 1, 0, 0, 0, 0, time.UTC)), true
		}
		if v < minSerial || v > maxSerial {
			return "", false
		}
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return "", false
		}
		return firstOfMonth(t), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return firstOfMonth(t), true
		}
	}
	return "", false
}

func firstOfMonth(t time.Time) string {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}
