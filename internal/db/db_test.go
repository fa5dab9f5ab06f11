package db

import (
	"context"
	"strings"
	"testing"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		query   string
		want    string
	}{
		{DialectSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{DialectMySQL, "DELETE FROM t WHERE a = ?", "DELETE FROM t WHERE a = ?"},
		{DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		d := &DB{Dialect: tt.dialect}
		if got := d.Rebind(tt.query); got != tt.want {
			t.Errorf("Rebind(%s, %q) = %q, want %q", tt.dialect, tt.query, got, tt.want)
		}
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		dialect Dialect
		driver  string
	}{
		{"popis.sqlite3", DialectSQLite, "sqlite"},
		{":memory:", DialectSQLite, "sqlite"},
		{"postgres://u:p@localhost:5432/popis?sslmode=disable", DialectPostgres, "pgx"},
		{"postgresql://localhost/popis", DialectPostgres, "pgx"},
		{"mysql://u:p@tcp(localhost:3306)/popis", DialectMySQL, "mysql"},
	}

	for _, tt := range tests {
		dialect, driver, _, err := parseURL(tt.url)
		if err != nil {
			t.Errorf("parseURL(%q): %v", tt.url, err)
			continue
		}
		if dialect != tt.dialect || driver != tt.driver {
			t.Errorf("parseURL(%q) = %s/%s, want %s/%s", tt.url, dialect, driver, tt.dialect, tt.driver)
		}
	}
}

func TestParseURLSQLitePragmas(t *testing.T) {
	_, _, dsn, err := parseURL("data/popis.sqlite3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dsn, "data/popis.sqlite3?_pragma=") {
		t.Errorf("unexpected dsn %q", dsn)
	}
	if !strings.Contains(dsn, "_time_format=sqlite") {
		t.Errorf("dsn %q is missing time format", dsn)
	}
}

func TestParseURLMySQLForcesParseTime(t *testing.T) {
	_, _, dsn, err := parseURL("mysql://u:p@tcp(localhost:3306)/popis")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("dsn %q is missing parseTime", dsn)
	}
}

func TestParseURLEmpty(t *testing.T) {
	if _, _, _, err := parseURL(""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := NewTestDB(t)

	if err := Migrate(context.Background(), d); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int
	if err := d.QueryRow(`SELECT COUNT(*) FROM inventory`).Scan(&count); err != nil {
		t.Fatalf("querying inventory table: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty inventory table, got %d rows", count)
	}
}
