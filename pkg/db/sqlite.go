package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteConfig holds configuration for the embedded SQLite database.
type SQLiteConfig struct {
	// Path to the database file. ":memory:" is accepted for tests.
	Path string
}

// SQLiteClient is a thin wrapper around a sql.DB handle backed by modernc's
// pure-Go SQLite driver.
type SQLiteClient struct {
	db  *sql.DB
	cfg SQLiteConfig
}

// NewSQLiteClient constructs a SQLite client.
func NewSQLiteClient(cfg SQLiteConfig) *SQLiteClient {
	return &SQLiteClient{cfg: cfg}
}

// Connect opens the database file, creating its directory if needed, and
// switches it to WAL mode so readers never block the ingest writer.
func (c *SQLiteClient) Connect(ctx context.Context) error {
	if c.cfg.Path == "" {
		return eris.New("sqlite path is required")
	}
	if c.cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0o755); err != nil {
			return eris.Wrap(err, "create sqlite directory")
		}
	}

	db, err := sql.Open("sqlite", c.cfg.Path)
	if err != nil {
		return eris.Wrap(err, "open sqlite")
	}

	// SQLite allows one writer; a single connection also keeps :memory:
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return eris.Wrapf(err, "sqlite %s", p)
		}
	}

	c.db = db
	return nil
}

// Close closes the underlying sql.DB handle.
func (c *SQLiteClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying handle for query/exec operations.
func (c *SQLiteClient) DB() *sql.DB {
	return c.db
}
