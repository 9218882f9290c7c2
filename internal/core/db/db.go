// Package db provides the content pack store: connection management,
// embedded migrations and named queries.
//
// Supports SQLite (local authoring) and PostgreSQL (shared pack servers) via
// sqlx for connection pooling and query helpers. Migrations are embedded SQL
// files applied by a small checksumming runner.
package db

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connection pool limits. Pack stores see short bursts of reads at load
// time and little else, so the pool stays small.
const (
	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// Driver names as registered by the imported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// driverFor maps a database URL to a driver name and data source.
// SQLite URLs: sqlite://relative/file.db or sqlite:///absolute/file.db.
// PostgreSQL URLs are passed through unchanged.
func driverFor(dbURL string) (driver, dataSource string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL has no file path: %s", dbURL)
		}
		// Foreign keys are off by default in SQLite.
		return DriverSQLite, path + "?_foreign_keys=on", nil
	case "postgres", "postgresql":
		return DriverPostgres, dbURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}
}

// Open establishes a database connection from a URL and configures connection pooling.
func Open(dbURL string) (*sqlx.DB, error) {
	driver, dataSource, err := driverFor(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
