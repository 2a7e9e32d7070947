package txlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

// pageSize bounds how many rows a reader holds per query. Rows are released
// before entries are yielded, so a slow consumer never pins the connection.
const pageSize = 256

// CorruptEntryError reports a row whose checksum does not match its contents.
type CorruptEntryError struct {
	Seq     int64
	Message string
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("log entry %d is corrupt: %s", e.Seq, e.Message)
}

// IsCorruptEntry reports whether err is a CorruptEntryError.
func IsCorruptEntry(err error) bool {
	var ce *CorruptEntryError
	return errors.As(err, &ce)
}

// ReadFrom returns the entries with seq >= from in ascending order.
//
// The sequence is lazy and finite, and it can be ranged over any number of
// times; every iteration re-reads the log from the given point. A read or
// integrity error is yielded once as the final element.
func (l *Log) ReadFrom(ctx context.Context, from int64) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		next := from
		for {
			page, err := l.readPage(ctx, next)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			next = page[len(page)-1].Seq + 1
		}
	}
}

func (l *Log) readPage(ctx context.Context, from int64) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, committed_at, actor, change_set, hash
		FROM entries
		WHERE seq >= ?
		ORDER BY seq ASC
		LIMIT ?
	`, from, pageSize)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		seq         int64
		committedAt int64
		actor       string
		csJSON      string
		hash        string
	)
	if err := rows.Scan(&seq, &committedAt, &actor, &csJSON, &hash); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	cs, err := fact.UnmarshalChangeSet([]byte(csJSON))
	if err != nil {
		return Entry{}, &CorruptEntryError{Seq: seq, Message: err.Error()}
	}

	want, err := fact.EntryHash(seq, committedAt, actor, cs)
	if err != nil {
		return Entry{}, &CorruptEntryError{Seq: seq, Message: err.Error()}
	}
	if want != hash {
		return Entry{}, &CorruptEntryError{Seq: seq, Message: "checksum mismatch"}
	}

	return Entry{
		Seq:       seq,
		Timestamp: time.Unix(0, committedAt).UTC(),
		Actor:     actor,
		ChangeSet: cs,
	}, nil
}
