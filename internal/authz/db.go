package authz

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the differences between the two SQL backends.
type dialect struct {
	name       string
	sqlDriver  string
	lockSuffix string
	txOptions  *sql.TxOptions
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", DriverSQLite:
		// One connection serializes every transaction.
		return dialect{name: DriverSQLite, sqlDriver: "sqlite3"}, nil
	case DriverPostgres:
		return dialect{
			name:       DriverPostgres,
			sqlDriver:  "pgx",
			lockSuffix: " FOR UPDATE",
			txOptions:  &sql.TxOptions{Isolation: sql.LevelSerializable},
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported authz driver %q", driver)
	}
}

// rebind rewrites ? placeholders into the backend's form.
func (d dialect) rebind(query string) string {
	if d.name != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func openDB(d dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open authz database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to authz database: %w", err)
	}

	if d.name == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = FULL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
	}

	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply authz schema: %w", err)
		}
	}
	return db, nil
}

// splitStatements splits a schema file on semicolons and drops comment-only
// fragments.
func splitStatements(schema string) []string {
	var out []string
	for _, part := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}
