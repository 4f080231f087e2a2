package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/petrodata/prodlake/config"
	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/extract"
	"github.com/petrodata/prodlake/lake/pkg/load"
	"github.com/petrodata/prodlake/lake/pkg/metrics"
	"github.com/petrodata/prodlake/lake/pkg/normalize"
	"github.com/petrodata/prodlake/lake/pkg/publish"
	"github.com/petrodata/prodlake/lake/pkg/report"
	"github.com/petrodata/prodlake/lake/pkg/schema"
	"github.com/petrodata/prodlake/lake/pkg/source"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

const (
	StageInitialize = "initialize"
	StageExtract    = "extract"
	StageNormalize  = "normalize"
	StageLoad       = "load"
	StageReport     = "report"
	StagePublish    = "publish"
)

// StageError reports which stage stopped the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Publisher uploads run artifacts.
type Publisher interface {
	Publish(ctx context.Context, runID string, files []string) ([]string, error)
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	App    *config.Config

	// Fetcher defaults to an HTTP fetcher built from App.Sources.
	Fetcher source.Fetcher
	// Publisher defaults to an S3 publisher when App.Publish.URI is set.
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Console receives the county table when set.
	Console io.Writer
	// RunID defaults to a random UUID.
	RunID string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.App == nil {
		return fmt.Errorf("app config is required")
	}
	if err := c.App.Validate(); err != nil {
		return err
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	return nil
}

// Pipeline runs the stages in a fixed order: initialize, extract, normalize, load, report and,
// when configured, publish. The first failing stage ends the run.
type Pipeline struct {
	log *slog.Logger
	cfg Config

	storeCfg store.Config
	staging  dataset.Staging
}

func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger.With("run_id", cfg.RunID)

	if cfg.Fetcher == nil {
		fetcher, err := source.NewHTTPFetcher(source.HTTPFetcherConfig{
			Logger:    log,
			Timeout:   cfg.App.Sources.Timeout,
			UserAgent: cfg.App.Sources.UserAgent,
			Retries:   cfg.App.Sources.Retries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
		cfg.Fetcher = fetcher
	}

	if cfg.Publisher == nil && cfg.App.Publish.URI != "" {
		s3Cfg, err := publish.LoadS3ConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load S3 config: %w", err)
		}
		p, err := publish.New(ctx, publish.Config{
			Logger:       log,
			URI:          cfg.App.Publish.URI,
			S3:           s3Cfg,
			CreateBucket: s3Cfg.IsMinIO(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		cfg.Publisher = p
	}

	return &Pipeline{
		log: log,
		cfg: cfg,
		storeCfg: store.Config{
			Logger: log,
			Driver: store.Driver(cfg.App.Store.Driver),
			DSN:    cfg.App.Store.DSN,
		},
		staging: dataset.Staging{
			RawDir:       cfg.App.RawDir(),
			ProcessedDir: cfg.App.ProcessedDir(),
		},
	}, nil
}

func (p *Pipeline) RunID() string {
	return p.cfg.RunID
}

// Summary collects the per-stage results of a run. Fields for stages that did not run are nil.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Extract   *extract.Result
	Normalize *normalize.Result
	Load      *load.Result
	Report    *report.Result
	Published []string
}

// Run executes every stage. The returned summary is never nil; on failure it holds the results of
// the stages that completed, and the error is a *StageError.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: p.cfg.RunID, StartedAt: p.cfg.Clock.Now()}
	p.log.Info("pipeline: starting", "store", p.storeCfg.Driver, "dsn", store.RedactedDSN(p.storeCfg.DSN), "staging", p.cfg.App.Staging.Dir)

	err := p.run(ctx, sum)
	sum.Duration = p.cfg.Clock.Since(sum.StartedAt)
	if err == nil {
		p.cfg.Metrics.LastSuccess.Set(float64(p.cfg.Clock.Now().Unix()))
	}
	if path := p.cfg.App.Metrics.Textfile; path != "" {
		if werr := p.cfg.Metrics.WriteTextfile(path); werr != nil {
			if err != nil {
				p.log.Warn("pipeline: failed to write metrics", "path", path, "error", werr)
			} else {
				err = werr
			}
		}
	}
	if err != nil {
		p.log.Error("pipeline: failed", "error", err, "duration", sum.Duration.String())
		return sum, err
	}
	p.log.Info("pipeline: completed", "duration", sum.Duration.String())
	return sum, nil
}

type stage struct {
	name string
	fn   func(context.Context) error
}

func (p *Pipeline) run(ctx context.Context, sum *Summary) error {
	stages := []stage{
		{StageInitialize, p.initialize},
		{StageExtract, func(ctx context.Context) (err error) {
			sum.Extract, err = p.extract(ctx)
			return err
		}},
		{StageNormalize, func(ctx context.Context) (err error) {
			sum.Normalize, err = p.normalize(ctx)
			return err
		}},
		{StageLoad, func(ctx context.Context) (err error) {
			sum.Load, err = p.load(ctx)
			return err
		}},
		{StageReport, func(ctx context.Context) (err error) {
			sum.Report, err = p.report(ctx)
			return err
		}},
	}
	if p.cfg.Publisher != nil {
		stages = append(stages, stage{StagePublish, func(ctx context.Context) (err error) {
			sum.Published, err = p.publish(ctx, sum)
			return err
		}})
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: st.name, Err: err}
		}
		start := p.cfg.Clock.Now()
		err := st.fn(ctx)
		d := p.cfg.Clock.Since(start)
		p.cfg.Metrics.ObserveStage(st.name, d, err)
		if err != nil {
			return &StageError{Stage: st.name, Err: err}
		}
		p.log.Debug("pipeline: stage completed", "stage", st.name, "duration", d.String())
	}
	return nil
}

func (p *Pipeline) initialize(ctx context.Context) error {
	initializer, err := schema.NewInitializer(schema.InitializerConfig{
		Logger:  p.log,
		Store:   p.storeCfg,
		DDLPath: p.cfg.App.Schema.Path,
	})
	if err != nil {
		return err
	}
	return initializer.Run(ctx)
}

func (p *Pipeline) extract(ctx context.Context) (*extract.Result, error) {
	src := p.cfg.App.Sources
	mappings := make([]dataset.Mapping, 0, len(src.Wells.Columns))
	for _, c := range src.Wells.Columns {
		mappings = append(mappings, dataset.Mapping{Source: c.Source, Target: c.Target})
	}

	ex, err := extract.New(extract.Config{
		Logger:  p.log,
		Fetcher: p.cfg.Fetcher,
		Staging: p.staging,
		Oil:     extract.WorkbookSource{Dataset: config.OilDataset, URL: src.Oil.URL, Sheets: sheetSpecs(src.Oil.Sheets)},
		Gas:     extract.WorkbookSource{Dataset: config.GasDataset, URL: src.Gas.URL, Sheets: sheetSpecs(src.Gas.Sheets)},
		Wells: extract.ArchiveSource{
			Dataset: config.WellsDataset,
			URL:     src.Wells.URL,
			Member:  src.Wells.Member,
			Columns: mappings,
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := ex.Run(ctx)
	if res != nil {
		for _, d := range res.Datasets {
			p.cfg.Metrics.SetRows(StageExtract, d.Dataset, d.Rows)
		}
	}
	return res, err
}

func sheetSpecs(sheets []config.SheetConfig) []source.SheetSpec {
	specs := make([]source.SheetSpec, 0, len(sheets))
	for _, sh := range sheets {
		specs = append(specs, source.SheetSpec{
			Name:        sh.Name,
			SkipRows:    sh.SkipRows,
			DateColumn:  source.Selector{Index: sh.DateColumn.Index, Header: sh.DateColumn.Header},
			ValueColumn: source.Selector{Index: sh.ValueColumn.Index, Header: sh.ValueColumn.Header},
		})
	}
	return specs
}

func (p *Pipeline) normalize(ctx context.Context) (*normalize.Result, error) {
	n, err := normalize.New(normalize.Config{
		Logger:     p.log,
		Staging:    p.staging,
		Production: []string{config.OilDataset, config.GasDataset},
		Wells:      config.WellsDataset,
	})
	if err != nil {
		return nil, err
	}
	res, err := n.Run(ctx)
	if res != nil {
		for _, s := range res.Datasets {
			p.cfg.Metrics.SetRows(StageNormalize, s.Dataset, s.RowsOut)
		}
	}
	return res, err
}

func (p *Pipeline) load(ctx context.Context) (*load.Result, error) {
	app := p.cfg.App
	l, err := load.New(load.Config{
		Logger:  p.log,
		Store:   p.storeCfg,
		Staging: p.staging,
		Datasets: []load.Dataset{
			{Name: config.OilDataset, Table: config.OilTable},
			{Name: config.GasDataset, Table: config.GasTable},
			{Name: config.WellsDataset, Table: config.WellsTable},
		},
		Production: []load.ProductionFeed{
			{Dataset: config.OilDataset, Product: load.ProductOil, Unit: app.Sources.Oil.Unit},
			{Dataset: config.GasDataset, Product: load.ProductGas, Unit: app.Sources.Gas.Unit},
		},
		Wells:             &load.WellsFeed{Dataset: config.WellsDataset, State: app.Sources.Wells.State},
		AggregateOperator: app.Load.AggregateOperator,
	})
	if err != nil {
		return nil, err
	}
	res, err := l.Run(ctx)
	if err != nil {
		return nil, err
	}
	for table, n := range res.Appended {
		p.cfg.Metrics.SetRows(StageLoad, table, n)
	}
	p.cfg.Metrics.NullCoerced.Set(float64(res.NullCoerced))
	return res, nil
}

func (p *Pipeline) report(ctx context.Context) (*report.Result, error) {
	r, err := report.New(report.Config{
		Logger:            p.log,
		Store:             p.storeCfg,
		Staging:           p.staging,
		WellsTable:        config.WellsTable,
		WellsDataset:      config.WellsDataset,
		CountySummaryPath: p.cfg.App.CountySummaryPath(),
		GeoJSONPath:       p.cfg.App.GeoJSONPath(),
		ExcludeLongitude:  p.cfg.App.Report.ExcludeLongitude,
		Console:           p.cfg.Console,
	})
	if err != nil {
		return nil, err
	}
	res, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.SetRows(StageReport, "counties", len(res.Counties))
	p.cfg.Metrics.SetRows(StageReport, "features", res.Features)
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, sum *Summary) ([]string, error) {
	if sum.Report == nil {
		return nil, errors.New("no report artifacts to publish")
	}
	files := append([]string(nil), sum.Report.Artifacts...)
	if p.cfg.App.Publish.IncludeStaging {
		for _, name := range []string{config.OilDataset, config.GasDataset, config.WellsDataset} {
			files = append(files, p.staging.Raw(name), p.staging.Processed(name))
		}
	}
	return p.cfg.Publisher.Publish(ctx, p.cfg.RunID, files)
}
