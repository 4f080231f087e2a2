package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidDriver = errors.New("invalid store driver")
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the full run configuration. Every stage receives the parts it needs from here instead of
// reading globals.
type Config struct {
	Verbose bool          `yaml:"verbose"`
	Store   StoreConfig   `yaml:"store"`
	Staging StagingConfig `yaml:"staging"`
	Schema  SchemaConfig  `yaml:"schema"`
	Sources SourcesConfig `yaml:"sources"`
	Load    LoadConfig    `yaml:"load"`
	Report  ReportConfig  `yaml:"report"`
	Publish PublishConfig `yaml:"publish"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite and duckdb, and a postgres:// URI for postgres.
	DSN string `yaml:"dsn"`
}

type StagingConfig struct {
	Dir string `yaml:"dir"`
}

type SchemaConfig struct {
	// Path to a DDL script. Empty means the embedded default for the store driver.
	Path string `yaml:"path"`
}

type SourcesConfig struct {
	Timeout   time.Duration     `yaml:"timeout"`
	Retries   int               `yaml:"retries"`
	UserAgent string            `yaml:"user_agent"`
	Oil       SpreadsheetSource `yaml:"oil"`
	Gas       SpreadsheetSource `yaml:"gas"`
	Wells     ArchiveSource     `yaml:"wells"`
}

// SpreadsheetSource is a workbook with one sheet per state.
type SpreadsheetSource struct {
	URL    string        `yaml:"url"`
	Unit   string        `yaml:"unit"`
	Sheets []SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	Name        string         `yaml:"name"`
	SkipRows    int            `yaml:"skip_rows"`
	DateColumn  ColumnSelector `yaml:"date_column"`
	ValueColumn ColumnSelector `yaml:"value_column"`
}

// ColumnSelector picks a spreadsheet column by header text or by zero-based position. Header wins
// when both are set.
type ColumnSelector struct {
	Index  *int   `yaml:"index,omitempty"`
	Header string `yaml:"header,omitempty"`
}

func (s ColumnSelector) String() string {
	if s.Header != "" {
		return fmt.Sprintf("header %q", s.Header)
	}
	if s.Index != nil {
		return fmt.Sprintf("index %d", *s.Index)
	}
	return "unset"
}

// ArchiveSource is a zip archive holding a single CSV member.
type ArchiveSource struct {
	URL     string          `yaml:"url"`
	Member  string          `yaml:"member"`
	State   string          `yaml:"state"`
	Columns []ColumnMapping `yaml:"columns"`
}

type ColumnMapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type LoadConfig struct {
	AggregateOperator string `yaml:"aggregate_operator"`
}

type ReportConfig struct {
	CountySummaryPath string `yaml:"county_summary_path"`
	GeoJSONPath       string `yaml:"geojson_path"`
	// ExcludeLongitude drops the longitude property from GeoJSON features. Off by default so the
	// published artifact keeps its current shape.
	ExcludeLongitude bool `yaml:"exclude_longitude"`
}

type PublishConfig struct {
	// URI is s3://bucket/prefix. Empty disables publishing.
	URI            string `yaml:"uri"`
	IncludeStaging bool   `yaml:"include_staging"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func intPtr(v int) *int { return &v }

// Default returns the configuration that reproduces the stock pipeline with no flags or files.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    DefaultStoreDSN,
		},
		Staging: StagingConfig{Dir: DefaultStagingDir},
		Sources: SourcesConfig{
			Timeout:   DefaultSourceTimeout,
			UserAgent: DefaultUserAgent,
			Oil: SpreadsheetSource{
				URL:    OilProductionURL,
				Unit:   DefaultOilUnit,
				Sheets: defaultSheets(),
			},
			Gas: SpreadsheetSource{
				URL:    GasProductionURL,
				Unit:   DefaultGasUnit,
				Sheets: defaultSheets(),
			},
			Wells: ArchiveSource{
				URL:    WellsArchiveURL,
				Member: WellsArchiveCSV,
				State:  DefaultWellsState,
				Columns: []ColumnMapping{
					{Source: "API_WellNo", Target: "id"},
					{Source: "Well_Status", Target: "county"},
					{Source: "Operator_number", Target: "operator"},
					{Source: "Completion", Target: "status"},
					{Source: "Surface_Longitude", Target: "longitude"},
					{Source: "Surface_latitude", Target: "latitude"},
				},
			},
		},
		Load: LoadConfig{AggregateOperator: DefaultAggregateOperator},
	}
}

func defaultSheets() []SheetConfig {
	return []SheetConfig{
		{Name: "WV", SkipRows: 2, DateColumn: ColumnSelector{Index: intPtr(0)}, ValueColumn: ColumnSelector{Index: intPtr(2)}},
		{Name: "PA", SkipRows: 3, DateColumn: ColumnSelector{Index: intPtr(0)}, ValueColumn: ColumnSelector{Index: intPtr(2)}},
	}
}

func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverSQLite, DriverDuckDB, DriverPostgres}, c.Store.Driver) {
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("%w: store dsn is required", ErrInvalidConfig)
	}
	if c.Store.Driver == DriverPostgres && !strings.HasPrefix(c.Store.DSN, "postgres://") && !strings.HasPrefix(c.Store.DSN, "postgresql://") {
		return fmt.Errorf("%w: postgres dsn must start with postgres:// or postgresql://", ErrInvalidConfig)
	}
	if c.Staging.Dir == "" {
		return fmt.Errorf("%w: staging dir is required", ErrInvalidConfig)
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("%w: source timeout must be positive", ErrInvalidConfig)
	}
	if c.Sources.Retries < 0 {
		return fmt.Errorf("%w: source retries cannot be negative", ErrInvalidConfig)
	}
	for name, src := range map[string]SpreadsheetSource{"oil": c.Sources.Oil, "gas": c.Sources.Gas} {
		if err := src.validate(); err != nil {
			return fmt.Errorf("%w: %s source: %w", ErrInvalidConfig, name, err)
		}
	}
	if err := c.Sources.Wells.validate(); err != nil {
		return fmt.Errorf("%w: wells source: %w", ErrInvalidConfig, err)
	}
	if c.Load.AggregateOperator == "" {
		return fmt.Errorf("%w: load aggregate operator is required", ErrInvalidConfig)
	}
	if c.Publish.URI != "" {
		u, err := url.Parse(c.Publish.URI)
		if err != nil {
			return fmt.Errorf("%w: invalid publish uri: %w", ErrInvalidConfig, err)
		}
		if u.Scheme != "s3" || u.Host == "" {
			return fmt.Errorf("%w: publish uri must be s3://bucket[/prefix] (got: %q)", ErrInvalidConfig, c.Publish.URI)
		}
	}
	return nil
}

func (s SpreadsheetSource) validate() error {
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(s.Sheets) == 0 {
		return fmt.Errorf("at least one sheet is required")
	}
	for _, sh := range s.Sheets {
		if sh.Name == "" {
			return fmt.Errorf("sheet name is required")
		}
		if sh.SkipRows < 0 {
			return fmt.Errorf("sheet %s: skip_rows cannot be negative", sh.Name)
		}
		for _, sel := range []ColumnSelector{sh.DateColumn, sh.ValueColumn} {
			if sel.Header == "" && sel.Index == nil {
				return fmt.Errorf("sheet %s: column selector needs a header or an index", sh.Name)
			}
			if sel.Index != nil && *sel.Index < 0 {
				return fmt.Errorf("sheet %s: column index cannot be negative", sh.Name)
			}
		}
	}
	return nil
}

func (s ArchiveSource) validate() error {
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if s.Member == "" {
		return fmt.Errorf("member is required")
	}
	if s.State == "" {
		return fmt.Errorf("state is required")
	}
	targets := make(map[string]bool, len(s.Columns))
	for _, m := range s.Columns {
		if m.Source == "" || m.Target == "" {
			return fmt.Errorf("column mapping needs source and target")
		}
		targets[m.Target] = true
	}
	for _, required := range []string{"id", "county", "longitude", "latitude"} {
		if !targets[required] {
			return fmt.Errorf("column mapping must produce %q", required)
		}
	}
	return nil
}

func (c *Config) RawDir() string {
	return filepath.Join(c.Staging.Dir, RawDir)
}

func (c *Config) ProcessedDir() string {
	return filepath.Join(c.Staging.Dir, ProcessedDir)
}

func (c *Config) CountySummaryPath() string {
	if c.Report.CountySummaryPath != "" {
		return c.Report.CountySummaryPath
	}
	return filepath.Join(c.ProcessedDir(), CountySummaryFile)
}

func (c *Config) GeoJSONPath() string {
	if c.Report.GeoJSONPath != "" {
		return c.Report.GeoJSONPath
	}
	return filepath.Join(c.ProcessedDir(), GeoJSONFile)
}
