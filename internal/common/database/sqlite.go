// internal/common/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"pathfinder-workers/internal/common/config"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient is a local reference database, read-only in service mode.
type SQLiteClient struct {
	DB *sql.DB
}

// NewSQLite opens path. ":memory:" is accepted for tests.
func NewSQLite(cfg config.SQLiteConfig) (*SQLiteClient, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	dsn := cfg.Path
	if dsn != ":memory:" {
		dsn = "file:" + cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.Path, err)
	}
	// a single connection keeps ":memory:" databases consistent across queries
	db.SetMaxOpenConns(1)

	return &SQLiteClient{DB: db}, nil
}

func (c *SQLiteClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (c *SQLiteClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
