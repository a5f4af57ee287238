// Package storage is the SQL record store. The same queries run on SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx through database/sql); only the
// placeholder style and the migration set differ.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Options selects and locates the database.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	DatabaseURL string
}

func openDB(opts Options) (*sql.DB, error) {
	switch opts.Dialect {
	case SQLite:
		if dir := filepath.Dir(opts.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", sqliteDSN(opts.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// One writer at a time; SQLite serializes them anyway.
		db.SetMaxOpenConns(1)
		return db, nil
	case Postgres:
		cfg, err := pgx.ParseConfig(NormalizeDatabaseURL(opts.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", opts.Dialect)
}

// sqliteDSN turns on foreign keys and a busy timeout for every connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// NormalizeDatabaseURL rewrites postgresql:// to postgres:// and defaults
// sslmode to disable.
func NormalizeDatabaseURL(u string) string {
	u = strings.TrimSpace(u)
	if rest, ok := strings.CutPrefix(u, "postgresql://"); ok {
		u = "postgres://" + rest
	}
	if u != "" && !strings.Contains(u, "sslmode=") {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "sslmode=disable"
	}
	return u
}

// rebind rewrites ? placeholders to $1, $2... for PostgreSQL.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
