package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend behind a DB
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed width so stored timestamps sort lexically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// DB wraps a database connection. Queries are written with postgres-style
// $N placeholders and rebound for sqlite.
type DB struct {
	*sql.DB
	dialect Dialect
}

// New opens a database from a URL. postgres:// and postgresql:// URLs use lib/pq;
// sqlite://<path>, file:<path> and :memory: use the pure-Go sqlite driver.
func New(databaseURL string) (*DB, error) {
	dialect, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// One connection keeps :memory: databases shared and avoids SQLITE_BUSY on writes
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set journal mode: %w", err)
		}
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: conn, dialect: dialect}, nil
}

func parseDatabaseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database URL has no path")
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return DialectSQLite, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme (want postgres://, sqlite:// or file:)")
	}
}

// Dialect returns the backend in use
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// HealthCheck pings the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// ExecContext executes a statement after rebinding placeholders
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.rebind(query), args...)
}

// QueryContext runs a query after rebinding placeholders
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.rebind(query), args...)
}

// QueryRowContext runs a single-row query after rebinding placeholders
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.rebind(query), args...)
}

// rebind turns $N placeholders into ? for sqlite. Arguments must appear in ascending $N order.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

// timeArg converts a time into the representation stored by the current dialect
func (db *DB) timeArg(t time.Time) any {
	t = t.UTC()
	if db.dialect == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// timestamp scans TIMESTAMPTZ values from postgres and fixed-width text from sqlite
type timestamp struct {
	Time time.Time
}

var _ sql.Scanner = (*timestamp)(nil)

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case nil:
		ts.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (ts *timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	ts.Time = t.UTC()
	return nil
}

// nullString maps "" to SQL NULL
func nullString(s string) driver.Valuer {
	return sql.NullString{String: s, Valid: s != ""}
}
