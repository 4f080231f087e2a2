package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	SQLite   Driver = "sqlite"
	DuckDB   Driver = "duckdb"
	Postgres Driver = "postgres"
)

var ErrUnsupportedDriver = errors.New("unsupported store driver")

// sqlDriverName maps a store driver to its database/sql registration.
func (d Driver) sqlDriverName() (string, error) {
	switch d {
	case SQLite:
		return "sqlite", nil
	case DuckDB:
		return "duckdb", nil
	case Postgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, string(d))
	}
}

// FileBacked reports whether the store lives in a single local database file.
func (d Driver) FileBacked() bool {
	return d == SQLite || d == DuckDB
}

type Config struct {
	Logger *slog.Logger
	Driver Driver
	// DSN is a database file path for sqlite and duckdb, or a postgres:// URI.
	DSN string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if _, err := c.Driver.sqlDriverName(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if c.Driver == Postgres {
		parsed, err := url.Parse(c.DSN)
		if err != nil {
			return fmt.Errorf("invalid postgres URI format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("postgres URI must include a host")
		}
		if parsed.Path == "" || parsed.Path == "/" {
			return fmt.Errorf("postgres URI must include a database name in the path")
		}
	}
	return nil
}

// Store is a handle on the destination database. Stages open it, take one Connection, and close it
// when they finish.
type Store struct {
	log    *slog.Logger
	db     *sql.DB
	driver Driver
	dsn    string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	name, _ := cfg.Driver.sqlDriverName()

	dsn := cfg.DSN
	if cfg.Driver.FileBacked() {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if cfg.Driver == SQLite {
		dsn = sqliteDSN(cfg.DSN)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver.FileBacked() {
		// Single writer; also keeps per-connection pragmas on the one connection in use.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %s", sanitizeErrorForLogging(err.Error()))
	}

	cfg.Logger.Debug("store: opened", "driver", cfg.Driver, "dsn", RedactedDSN(cfg.DSN))
	return &Store{
		log:    cfg.Logger,
		db:     db,
		driver: cfg.Driver,
		dsn:    cfg.DSN,
	}, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Conn returns a dedicated connection with referential integrity enforced.
func (s *Store) Conn(ctx context.Context) (Connection, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if s.driver == SQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	return &storeConnection{conn: conn, driver: s.driver}, nil
}

// Reset destroys any existing destination data. File-backed stores have their database file and
// its sidecar files removed. Postgres has its public schema dropped and recreated.
func Reset(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	if cfg.Driver.FileBacked() {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal", ".wal"} {
			path := cfg.DSN + suffix
			err := os.Remove(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
			if err == nil {
				cfg.Logger.Debug("store: removed database file", "path", path)
			}
		}
		return nil
	}

	s, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	for _, stmt := range []string{"DROP SCHEMA IF EXISTS public CASCADE", "CREATE SCHEMA public"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset schema: %w", err)
		}
	}
	cfg.Logger.Debug("store: reset public schema", "dsn", RedactedDSN(cfg.DSN))
	return nil
}

// Rebind rewrites ? placeholders into the positional $n form when the driver needs it. Question
// marks inside quoted text, quoted identifiers and comments are left alone.
func Rebind(driver Driver, query string) string {
	if driver != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+2])
			i += end + 1
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+1])
			i += end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+4])
			i += end + 3
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// QuoteIdent quotes an identifier for use in generated SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
