package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const memoryDatabase = ":memory:"

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db   *sql.DB
	path string
}

// NewSQLiteClient opens a database file, creating it if needed, or
// ":memory:"
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database lives on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db, path: path}, nil
}

// OpenSQLiteClient opens an existing database file. Unlike NewSQLiteClient it
// never creates one, so a mistyped path cannot import an empty schema.
func OpenSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	if path != memoryDatabase {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("database file %s does not exist", path)
		} else if err != nil {
			return nil, err
		}
	}
	return NewSQLiteClient(ctx, path)
}

// sqliteDSN waits on locks held by writers instead of failing at once
func sqliteDSN(path string) string {
	if path == memoryDatabase || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000"
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// Path returns the database file
func (c *SQLiteClient) Path() string {
	return c.path
}
