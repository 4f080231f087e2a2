package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

type Config struct {
	Logger  *slog.Logger
	Store   store.Config
	Staging dataset.Staging

	// WellsTable is grouped for the county summary.
	WellsTable string
	// WellsDataset is the processed staging file the GeoJSON is built from.
	WellsDataset string

	CountySummaryPath string
	GeoJSONPath       string
	ExcludeLongitude  bool

	// Console receives a rendered county table when set.
	Console io.Writer
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	if c.WellsTable == "" || c.WellsDataset == "" {
		return fmt.Errorf("wells table and dataset are required")
	}
	if c.CountySummaryPath == "" || c.GeoJSONPath == "" {
		return fmt.Errorf("output paths are required")
	}
	return nil
}

// Reporter writes the county well counts and the wells GeoJSON.
type Reporter struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Reporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reporter{log: cfg.Logger, cfg: cfg}, nil
}

type Result struct {
	Counties        []CountyCount
	Features        int
	SkippedFeatures int
	// Artifacts are the files written, in order.
	Artifacts []string
}

func (r *Reporter) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	counts, err := r.countyCounts(ctx)
	if err != nil {
		return nil, err
	}
	res.Counties = counts
	if err := dataset.WriteCSV(r.cfg.CountySummaryPath, CountyTable(counts)); err != nil {
		return nil, fmt.Errorf("failed to write county summary: %w", err)
	}
	res.Artifacts = append(res.Artifacts, r.cfg.CountySummaryPath)
	r.log.Info("reporter: wrote county summary", "path", r.cfg.CountySummaryPath, "counties", len(counts))

	if r.cfg.Console != nil {
		PrintCountyCounts(r.cfg.Console, counts)
	}

	wells, err := dataset.ReadCSV(r.cfg.Staging.Processed(r.cfg.WellsDataset))
	if err != nil {
		return nil, fmt.Errorf("failed to read processed wells: %w", err)
	}
	if !r.cfg.ExcludeLongitude {
		r.log.Warn("reporter: geojson properties retain the longitude column; set report.exclude_longitude to drop it")
	}
	fc, skipped, err := BuildFeatureCollection(wells, GeoJSONOptions{ExcludeLongitude: r.cfg.ExcludeLongitude})
	if err != nil {
		return nil, fmt.Errorf("failed to build geojson: %w", err)
	}
	if skipped > 0 {
		r.log.Warn("reporter: skipped rows without usable coordinates", "rows", skipped)
	}
	if err := dataset.WriteFileAtomic(r.cfg.GeoJSONPath, func(w io.Writer) error {
		return WriteGeoJSON(w, fc)
	}); err != nil {
		return nil, fmt.Errorf("failed to write geojson: %w", err)
	}
	res.Features = len(fc.Features)
	res.SkippedFeatures = skipped
	res.Artifacts = append(res.Artifacts, r.cfg.GeoJSONPath)
	r.log.Info("reporter: wrote geojson", "path", r.cfg.GeoJSONPath, "features", res.Features, "duration", time.Since(start).String())

	return res, nil
}

func (r *Reporter) countyCounts(ctx context.Context) ([]CountyCount, error) {
	s, err := store.Open(ctx, r.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	conn, err := s.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return CountByCounty(ctx, conn, r.cfg.WellsTable)
}
