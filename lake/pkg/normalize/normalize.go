package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
)

const (
	ColumnYearMonth = "year_month"
	ColumnLongitude = "longitude"
	ColumnLatitude  = "latitude"
)

// Stats counts what a normalization pass changed.
type Stats struct {
	Dataset        string
	RowsIn         int
	RowsOut        int
	DatesNulled    int
	DroppedZero    int
	DroppedMissing int
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("dataset", s.Dataset),
		slog.Int("rows_in", s.RowsIn),
		slog.Int("rows_out", s.RowsOut),
		slog.Int("dates_nulled", s.DatesNulled),
		slog.Int("dropped_zero", s.DroppedZero),
		slog.Int("dropped_missing", s.DroppedMissing),
	)
}

// CoerceDates rewrites year_month into first-of-month dates. Unparseable values become empty rather
// than failing. The input table is not modified.
func CoerceDates(t *dataset.Table) (*dataset.Table, Stats, error) {
	stats := Stats{RowsIn: t.Len()}
	idx, err := t.ColumnIndex(ColumnYearMonth)
	if err != nil {
		return nil, stats, err
	}

	out := dataset.New(t.Columns...)
	out.Rows = make([][]string, 0, t.Len())
	for _, row := range t.Rows {
		next := append([]string(nil), row...)
		if d, ok := CoerceDate(row[idx]); ok {
			next[idx] = d
		} else {
			next[idx] = ""
			stats.DatesNulled++
		}
		out.Rows = append(out.Rows, next)
	}
	stats.RowsOut = out.Len()
	return out, stats, nil
}

// FilterCoordinates drops rows whose longitude or latitude is exactly zero, then rows where either is
// missing or not a number. Surviving rows are unchanged.
func FilterCoordinates(t *dataset.Table) (*dataset.Table, Stats, error) {
	stats := Stats{RowsIn: t.Len()}
	lonIdx, err := t.ColumnIndex(ColumnLongitude)
	if err != nil {
		return nil, stats, err
	}
	latIdx, err := t.ColumnIndex(ColumnLatitude)
	if err != nil {
		return nil, stats, err
	}

	nonZero := t.Filter(func(row []string) bool {
		if isZero(row[lonIdx]) || isZero(row[latIdx]) {
			stats.DroppedZero++
			return false
		}
		return true
	})
	out := nonZero.Filter(func(row []string) bool {
		if _, ok := parseCoordinate(row[lonIdx]); !ok {
			stats.DroppedMissing++
			return false
		}
		if _, ok := parseCoordinate(row[latIdx]); !ok {
			stats.DroppedMissing++
			return false
		}
		return true
	})
	stats.RowsOut = out.Len()
	return out, stats, nil
}

func parseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isZero(s string) bool {
	v, ok := parseCoordinate(s)
	return ok && v == 0
}

type Config struct {
	Logger  *slog.Logger
	Staging dataset.Staging
	// Production datasets get date coercion.
	Production []string
	// Wells gets coordinate filtering.
	Wells string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Staging.RawDir == "" || c.Staging.ProcessedDir == "" {
		return fmt.Errorf("staging dirs are required")
	}
	if len(c.Production) == 0 && c.Wells == "" {
		return fmt.Errorf("no datasets to normalize")
	}
	return nil
}

// Normalizer turns raw staging files into processed staging files.
type Normalizer struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{log: cfg.Logger, cfg: cfg}, nil
}

type Result struct {
	Datasets []Stats
}

func (n *Normalizer) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, name := range n.cfg.Production {
		stats, err := n.apply(ctx, name, CoerceDates)
		if err != nil {
			return res, err
		}
		res.Datasets = append(res.Datasets, stats)
	}
	if n.cfg.Wells != "" {
		stats, err := n.apply(ctx, n.cfg.Wells, FilterCoordinates)
		if err != nil {
			return res, err
		}
		res.Datasets = append(res.Datasets, stats)
	}
	return res, nil
}

func (n *Normalizer) apply(ctx context.Context, name string, fn func(*dataset.Table) (*dataset.Table, Stats, error)) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{Dataset: name}, err
	}
	raw, err := dataset.ReadCSV(n.cfg.Staging.Raw(name))
	if err != nil {
		return Stats{Dataset: name}, fmt.Errorf("failed to read raw dataset %s: %w", name, err)
	}
	out, stats, err := fn(raw)
	stats.Dataset = name
	if err != nil {
		return stats, fmt.Errorf("failed to normalize %s: %w", name, err)
	}
	if err := dataset.WriteCSV(n.cfg.Staging.Processed(name), out); err != nil {
		return stats, fmt.Errorf("failed to write processed dataset %s: %w", name, err)
	}
	n.log.Info("normalizer: wrote processed dataset", "stats", stats)
	return stats, nil
}
