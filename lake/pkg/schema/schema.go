package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/petrodata/prodlake/lake"
	"github.com/petrodata/prodlake/lake/pkg/store"
)

// Tables lists every table the default DDL creates, in creation order.
var Tables = []string{
	"operators",
	"states",
	"wells",
	"production_volumes",
	"oil_production",
	"gas_production",
	"wells_by_county",
}

type InitializerConfig struct {
	Logger *slog.Logger
	Store  store.Config
	// DDLPath overrides the embedded DDL for the store driver.
	DDLPath string
	// ExpectedTables are checked after the DDL runs. Defaults to Tables.
	ExpectedTables []string
}

func (c *InitializerConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	if c.ExpectedTables == nil {
		c.ExpectedTables = Tables
	}
	return nil
}

// Initializer destroys the destination store and rebuilds it from DDL.
type Initializer struct {
	log *slog.Logger
	cfg InitializerConfig
}

func NewInitializer(cfg InitializerConfig) (*Initializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Initializer{log: cfg.Logger, cfg: cfg}, nil
}

// Run wipes prior state unconditionally, then applies the DDL. Any failure is returned; the caller
// must not continue with a partial schema.
func (i *Initializer) Run(ctx context.Context) error {
	ddl, source, err := i.ddl()
	if err != nil {
		return err
	}

	if err := store.Reset(ctx, i.cfg.Store); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	i.log.Info("initializer: store reset", "driver", i.cfg.Store.Driver, "dsn", store.RedactedDSN(i.cfg.Store.DSN))

	s, err := store.Open(ctx, i.cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	conn, err := s.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := Apply(ctx, i.log, conn, ddl); err != nil {
		return err
	}
	if err := Verify(ctx, conn, i.cfg.ExpectedTables...); err != nil {
		return err
	}
	i.log.Info("initializer: schema applied", "source", source, "bytes", len(ddl), "tables", len(i.cfg.ExpectedTables))
	return nil
}

func (i *Initializer) ddl() (string, string, error) {
	if i.cfg.DDLPath != "" {
		data, err := os.ReadFile(i.cfg.DDLPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to read schema file: %w", err)
		}
		return string(data), i.cfg.DDLPath, nil
	}
	ddl, err := Default(i.cfg.Store.Driver)
	if err != nil {
		return "", "", err
	}
	return ddl, "embedded:" + string(i.cfg.Store.Driver), nil
}

// Default returns the embedded DDL for a driver.
func Default(driver store.Driver) (string, error) {
	data, err := lake.SchemaFS.ReadFile("schema/" + string(driver) + ".sql")
	if err != nil {
		return "", fmt.Errorf("no embedded schema for driver %q: %w", driver, err)
	}
	return string(data), nil
}

// Apply runs ddl verbatim as one script inside a transaction. The database splits the statements, so
// trigger bodies and quoted semicolons survive.
func Apply(ctx context.Context, log *slog.Logger, conn store.Connection, ddl string) error {
	if strings.TrimSpace(ddl) == "" {
		return fmt.Errorf("schema script is empty")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error("failed to rollback schema transaction", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to execute schema script: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
