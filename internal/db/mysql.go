package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db       *sql.DB
	database string
}

// NewMySQLClient opens a connection from a driver DSN and pings the server
func NewMySQLClient(ctx context.Context, dsn string) (*MySQLClient, error) {
	database, err := ParseDatabaseName(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db, database: database}, nil
}

// NewMySQLClientFromDB wraps an open handle, e.g. one created by sqlmock
func NewMySQLClientFromDB(db *sql.DB, database string) *MySQLClient {
	return &MySQLClient{db: db, database: database}
}

// ParseDatabaseName extracts the database name from a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	return cfg.DBName, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// Database returns the database named in the DSN, which is the catalog
func (c *MySQLClient) Database() string {
	return c.database
}
