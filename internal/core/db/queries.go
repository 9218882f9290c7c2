package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// runner is the query surface shared by *sqlx.DB and *sqlx.Tx.
type runner interface {
	Exec(query string, args ...any) (sql.Result, error)
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	Rebind(query string) string
}

// Queries runs named SQL queries loaded from the embedded .sql files, either
// directly on the database or inside a transaction (see Tx).
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
	run runner
}

// LoadQueries loads every embedded .sql file. Queries are addressed by their
// dotsql name, e.g. "get-pack-by-name".
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combined strings.Builder

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		combined.Write(content)
		combined.WriteString("\n")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	return &Queries{dot: dot, db: db, run: db}, nil
}

// Tx runs fn with queries bound to one transaction, committing when fn
// returns nil and rolling back otherwise.
func (q *Queries) Tx(fn func(tx *Queries) error) error {
	if q.db == nil {
		return fn(q)
	}
	tx, err := q.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&Queries{dot: q.dot, run: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// named returns the query name rebound to the driver's placeholder style, so
// the .sql files can always use "?".
func (q *Queries) named(name string) (string, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return q.run.Rebind(query), nil
}

// Exec executes a named query.
func (q *Queries) Exec(name string, args ...any) (sql.Result, error) {
	query, err := q.named(name)
	if err != nil {
		return nil, err
	}
	return q.run.Exec(query, args...)
}

// Get scans a single row of a named query into dest.
func (q *Queries) Get(name string, dest any, args ...any) error {
	query, err := q.named(name)
	if err != nil {
		return err
	}
	return q.run.Get(dest, query, args...)
}

// Select scans every row of a named query into the slice dest.
func (q *Queries) Select(name string, dest any, args ...any) error {
	query, err := q.named(name)
	if err != nil {
		return err
	}
	return q.run.Select(dest, query, args...)
}
