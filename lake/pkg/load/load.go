package load

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/statedb"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

// Dataset maps a processed staging file onto the destination table of the same shape.
type Dataset struct {
	Name  string
	Table string
}

// ProductionFeed turns a production dataset into production volumes.
type ProductionFeed struct {
	Dataset string
	Product string
	Unit    string
}

// WellsFeed turns a wells dataset into wells located in State.
type WellsFeed struct {
	Dataset string
	State   string
}

type Config struct {
	Logger  *slog.Logger
	Store   store.Config
	Staging dataset.Staging

	// Datasets are appended in order.
	Datasets   []Dataset
	Production []ProductionFeed
	Wells      *WellsFeed

	// AggregateOperator owns the synthetic per-state wells that carry production totals.
	AggregateOperator string
	States            *statedb.StateDB
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	if c.Staging.ProcessedDir == "" {
		return fmt.Errorf("processed staging dir is required")
	}
	if len(c.Datasets) == 0 {
		return fmt.Errorf("at least one dataset is required")
	}
	known := make(map[string]bool, len(c.Datasets))
	for _, ds := range c.Datasets {
		if ds.Name == "" || ds.Table == "" {
			return fmt.Errorf("dataset needs a name and a table")
		}
		known[ds.Name] = true
	}
	for _, feed := range c.Production {
		if !known[feed.Dataset] {
			return fmt.Errorf("production feed references unknown dataset %q", feed.Dataset)
		}
		if feed.Product != ProductOil && feed.Product != ProductGas {
			return fmt.Errorf("production feed %s: product must be %s or %s", feed.Dataset, ProductOil, ProductGas)
		}
	}
	if c.Wells != nil {
		if !known[c.Wells.Dataset] {
			return fmt.Errorf("wells feed references unknown dataset %q", c.Wells.Dataset)
		}
		if c.Wells.State == "" {
			return fmt.Errorf("wells feed state is required")
		}
	}
	if c.AggregateOperator == "" && len(c.Production) > 0 {
		return fmt.Errorf("aggregate operator is required")
	}
	if c.States == nil {
		states, err := statedb.Default()
		if err != nil {
			return fmt.Errorf("failed to load state reference data: %w", err)
		}
		c.States = states
	}
	return nil
}

// Loader appends processed datasets into the destination store in one transaction.
type Loader struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{log: cfg.Logger, cfg: cfg}, nil
}

type Result struct {
	// Appended is rows inserted per destination table.
	Appended map[string]int
	// NullCoerced counts non-empty cells stored as NULL because they did not parse.
	NullCoerced int
	Entities    EntityCounts
}

func (r *Result) Rows() int {
	n := 0
	for _, v := range r.Appended {
		n += v
	}
	return n
}

// Run appends every dataset and derives entities, then commits. On any failure the whole transaction
// is rolled back and the error is returned.
func (l *Loader) Run(ctx context.Context) (*Result, error) {
	tables := make(map[string]*dataset.Table, len(l.cfg.Datasets))
	for _, ds := range l.cfg.Datasets {
		t, err := dataset.ReadCSV(l.cfg.Staging.Processed(ds.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read processed dataset %s: %w", ds.Name, err)
		}
		tables[ds.Name] = t
	}

	s, err := store.Open(ctx, l.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	conn, err := s.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := l.load(ctx, conn, tables)
	if err != nil {
		l.log.Error("loader: transaction rolled back", "error", err)
		return nil, err
	}
	return res, nil
}

func (l *Loader) load(ctx context.Context, conn store.Connection, tables map[string]*dataset.Table) (*Result, error) {
	start := time.Now()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.log.Error("failed to rollback transaction", "error", err)
		}
	}()

	res := &Result{Appended: make(map[string]int, len(l.cfg.Datasets))}
	for _, ds := range l.cfg.Datasets {
		t := tables[ds.Name]
		if t.Len() == 0 {
			l.log.Warn("loader: dataset is empty, skipping", "dataset", ds.Name)
			continue
		}
		n, coerced, err := Append(ctx, tx, ds.Table, t)
		if err != nil {
			return nil, fmt.Errorf("failed to append %s into %s: %w", ds.Name, ds.Table, err)
		}
		res.Appended[ds.Table] = n
		res.NullCoerced += coerced
		l.log.Debug("loader: appended dataset", "dataset", ds.Name, "table", ds.Table, "rows", n, "null_coerced", coerced)
	}

	d := newDeriver(tx, l.cfg.States)
	for _, feed := range l.cfg.Production {
		if err := d.deriveProduction(ctx, tables[feed.Dataset], feed, l.cfg.AggregateOperator); err != nil {
			return nil, fmt.Errorf("failed to derive production volumes from %s: %w", feed.Dataset, err)
		}
	}
	if l.cfg.Wells != nil {
		if err := d.deriveWells(ctx, tables[l.cfg.Wells.Dataset], *l.cfg.Wells); err != nil {
			return nil, fmt.Errorf("failed to derive wells from %s: %w", l.cfg.Wells.Dataset, err)
		}
	}
	res.Entities = d.counts

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	l.log.Info("loader: committed",
		"rows", res.Rows(),
		"null_coerced", res.NullCoerced,
		"states", res.Entities.States,
		"operators", res.Entities.Operators,
		"wells", res.Entities.Wells,
		"production_volumes", res.Entities.ProductionVolumes,
		"skipped_volumes", res.Entities.SkippedVolumes,
		"duration", time.Since(start).String())
	return res, nil
}
