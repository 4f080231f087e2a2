package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/source"
)

// WorkbookSource is a production spreadsheet with one sheet per state.
type WorkbookSource struct {
	// Dataset names the raw staging file.
	Dataset string
	URL     string
	Sheets  []source.SheetSpec
}

// ArchiveSource is a zip archive holding one CSV member whose columns are selected and renamed.
type ArchiveSource struct {
	Dataset string
	URL     string
	Member  string
	Columns []dataset.Mapping
}

type Config struct {
	Logger  *slog.Logger
	Fetcher source.Fetcher
	Staging dataset.Staging
	Oil     WorkbookSource
	Gas     WorkbookSource
	Wells   ArchiveSource
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.Staging.RawDir == "" {
		return fmt.Errorf("raw staging dir is required")
	}
	for _, ws := range []WorkbookSource{c.Oil, c.Gas} {
		if ws.Dataset == "" || ws.URL == "" {
			return fmt.Errorf("workbook source needs a dataset name and url")
		}
		if len(ws.Sheets) == 0 {
			return fmt.Errorf("workbook source %s has no sheets", ws.Dataset)
		}
	}
	if c.Wells.Dataset == "" || c.Wells.URL == "" || c.Wells.Member == "" {
		return fmt.Errorf("archive source needs a dataset name, url and member")
	}
	if len(c.Wells.Columns) == 0 {
		return fmt.Errorf("archive source %s has no columns", c.Wells.Dataset)
	}
	return nil
}

// Extractor fetches every source and persists one raw staging file per dataset.
type Extractor struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{log: cfg.Logger, cfg: cfg}, nil
}

type DatasetResult struct {
	Dataset string
	Path    string
	Rows    int
}

type Result struct {
	Datasets []DatasetResult
}

func (r *Result) Rows() int {
	n := 0
	for _, d := range r.Datasets {
		n += d.Rows
	}
	return n
}

// Run fetches the sources in order and stops at the first failure. Raw files written before the
// failure are left in place.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, ws := range []WorkbookSource{e.cfg.Oil, e.cfg.Gas} {
		dr, err := e.extractWorkbook(ctx, ws)
		if err != nil {
			return res, fmt.Errorf("failed to extract %s: %w", ws.Dataset, err)
		}
		res.Datasets = append(res.Datasets, *dr)
	}
	dr, err := e.extractArchive(ctx, e.cfg.Wells)
	if err != nil {
		return res, fmt.Errorf("failed to extract %s: %w", e.cfg.Wells.Dataset, err)
	}
	res.Datasets = append(res.Datasets, *dr)
	return res, nil
}

func (e *Extractor) extractWorkbook(ctx context.Context, ws WorkbookSource) (*DatasetResult, error) {
	start := time.Now()
	body, err := e.cfg.Fetcher.Fetch(ctx, ws.URL)
	if err != nil {
		return nil, err
	}
	tbl, err := source.ReadProductionWorkbook(body, ws.Sheets)
	if err != nil {
		return nil, err
	}
	return e.persist(ws.Dataset, tbl, start)
}

func (e *Extractor) extractArchive(ctx context.Context, as ArchiveSource) (*DatasetResult, error) {
	start := time.Now()
	body, err := e.cfg.Fetcher.Fetch(ctx, as.URL)
	if err != nil {
		return nil, err
	}
	member, err := source.ExtractMember(body, as.Member)
	if err != nil {
		return nil, err
	}
	full, err := dataset.DecodeCSV(bytes.NewReader(member))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", as.Member, err)
	}
	tbl, err := full.Rename(as.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to select columns from %s: %w", as.Member, err)
	}
	return e.persist(as.Dataset, tbl, start)
}

func (e *Extractor) persist(name string, tbl *dataset.Table, start time.Time) (*DatasetResult, error) {
	path := e.cfg.Staging.Raw(name)
	if err := dataset.WriteCSV(path, tbl); err != nil {
		return nil, err
	}
	e.log.Info("extractor: wrote raw dataset", "dataset", name, "rows", tbl.Len(), "path", path, "duration", time.Since(start).String())
	return &DatasetResult{Dataset: name, Path: path, Rows: tbl.Len()}, nil
}
