package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour a DB speaks.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DB is a connection pool together with the dialect of the server behind it.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// sqlitePragmas are applied to every pooled SQLite connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// Open opens a connection pool for the given database URL.
//
// postgres:// and postgresql:// URLs use pgx, mysql:// URLs use
// go-sql-driver/mysql (the part after the scheme is a regular MySQL DSN), and
// anything else is treated as a path to a SQLite database file.
func Open(url string) (*DB, error) {
	dialect, driver, dsn, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if url == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", dialect, err)
	}

	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

func parseURL(url string) (Dialect, string, string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DialectPostgres, "pgx", url, nil

	case strings.HasPrefix(url, "mysql://"):
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(url, "mysql://"))
		if err != nil {
			return "", "", "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return DialectMySQL, "mysql", cfg.FormatDSN(), nil

	case url == "":
		return "", "", "", fmt.Errorf("database url is empty")

	default:
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		var b strings.Builder
		b.WriteString(url)
		for _, p := range sqlitePragmas {
			b.WriteString(sep)
			b.WriteString("_pragma=")
			b.WriteString(p)
			sep = "&"
		}
		// Store times as "2006-01-02 15:04:05.999999999-07:00" so UTC values
		// compare correctly as strings.
		b.WriteString("&_time_format=sqlite")
		return DialectSQLite, "sqlite", b.String(), nil
	}
}

// Rebind rewrites ? placeholders into the form the dialect expects.
// Queries must not contain literal question marks.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
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
