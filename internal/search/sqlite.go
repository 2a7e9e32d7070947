package search

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteEngine is an embedded Engine backed by a SQLite database.
type SQLiteEngine struct {
	db *sql.DB
}

// OpenSQLite creates or opens an index database at path.
func OpenSQLite(path string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to index database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &SQLiteEngine{db: db}, nil
}

// fold returns the case-folded NFC form used for matching.
func fold(s string) string {
	return norm.NFC.String(cases.Fold().String(s))
}

// Apply implements Engine. The batch commits as one SQL transaction.
func (e *SQLiteEngine) Apply(ctx context.Context, batch []Operation) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, op := range batch {
		switch op.Op {
		case OpAdd:
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO documents (entity) VALUES (?)`, op.Entity); err != nil {
				return fmt.Errorf("upsert document %s: %w", op.Entity, err)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO field_values (entity, field, value, folded)
				VALUES (?, ?, ?, ?)
			`, op.Entity, op.Field, op.Value, fold(op.Value))
			if err != nil {
				return fmt.Errorf("add %s.%s: %w", op.Entity, op.Field, err)
			}
		case OpRemove:
			_, err := tx.ExecContext(ctx, `
				DELETE FROM field_values
				WHERE id = (
					SELECT id FROM field_values
					WHERE entity = ? AND field = ? AND value = ?
					ORDER BY id ASC
					LIMIT 1
				)
			`, op.Entity, op.Field, op.Value)
			if err != nil {
				return fmt.Errorf("remove %s.%s: %w", op.Entity, op.Field, err)
			}
		default:
			return fmt.Errorf("unknown operation %s", op.Op)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply batch: commit: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards in s using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Query implements Engine. Entities are ranked by the number of matching
// values, then by identifier.
func (e *SQLiteEngine) Query(ctx context.Context, q Query) ([]string, error) {
	query := `
		SELECT entity, COUNT(*) AS hits
		FROM field_values
		WHERE folded LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(fold(q.Term)) + "%"}
	if q.Field != "" {
		query += ` AND field = ?`
		args = append(args, q.Field)
	}
	query += `
		GROUP BY entity
		ORDER BY hits DESC, entity ASC
		LIMIT ?`
	args = append(args, q.limit())

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	entities := []string{}
	for rows.Next() {
		var (
			entity string
			hits   int
		)
		if err := rows.Scan(&entity, &hits); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return entities, nil
}

// Document implements Engine.
func (e *SQLiteEngine) Document(ctx context.Context, entity string) (Document, bool, error) {
	var exists int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE entity = ?`, entity).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT field, value FROM field_values
		WHERE entity = ?
		ORDER BY id ASC
	`, entity)
	if err != nil {
		return nil, false, fmt.Errorf("query document: %w", err)
	}
	defer rows.Close()

	doc := Document{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, fmt.Errorf("scan field: %w", err)
		}
		doc[field] = append(doc[field], value)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate fields: %w", err)
	}
	return doc, true, nil
}

// Reset implements Engine.
func (e *SQLiteEngine) Reset(ctx context.Context) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset index: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM field_values`, `DELETE FROM documents`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	}
	return tx.Commit()
}

// Close implements Engine.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}
