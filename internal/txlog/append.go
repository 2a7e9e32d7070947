package txlog

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

// Entry is one committed change-set.
type Entry struct {
	Seq       int64
	Timestamp time.Time
	Actor     string
	ChangeSet fact.ChangeSet
}

// Append writes e as the next entry and returns its sequence number.
// e.Seq is ignored: the log alone assigns sequence numbers.
//
// Append is synchronous. When it returns without error the entry is durable
// and every earlier entry has a smaller seq. Callers that must not be
// interrupted half-way should pass a context that cannot be cancelled.
func (l *Log) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Actor == "" {
		return 0, fmt.Errorf("append: actor is required")
	}

	csJSON, err := fact.MarshalChangeSet(e.ChangeSet)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	committedAt := e.Timestamp.UnixNano()

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entries`).Scan(&last); err != nil {
		return 0, fmt.Errorf("append: read head: %w", err)
	}
	seq := last + 1

	hash, err := fact.EntryHash(seq, committedAt, e.Actor, e.ChangeSet)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (seq, committed_at, actor, change_set, hash)
		VALUES (?, ?, ?, ?, ?)
	`, seq, committedAt, e.Actor, string(csJSON), hash)
	if err != nil {
		return 0, fmt.Errorf("append: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append: commit: %w", err)
	}

	return seq, nil
}
