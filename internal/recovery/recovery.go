// Package recovery rebuilds the primary store and the search index from the
// transaction log at startup.
//
// Recovery runs before any commit or query is accepted and has exclusive
// access to the store, the log and the index. Entries are re-applied
// without validation: they were validated when they were first committed.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/metrics"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/search"
	"github.com/roach88/metastore/internal/txlog"
)

// ErrCodeRecoveryFailed identifies a RecoveryError.
const ErrCodeRecoveryFailed = "RECOVERY_FAILED"

// RecoveryError is fatal: the process must not serve a store it cannot
// prove consistent with the log. Seq is the entry being replayed, or 0.
type RecoveryError struct {
	Seq int64
	Err error
}

func (e *RecoveryError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("%s: entry %d: %v", ErrCodeRecoveryFailed, e.Seq, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrCodeRecoveryFailed, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// IsRecoveryError returns true if err is a RecoveryError.
func IsRecoveryError(err error) bool {
	var re *RecoveryError
	return errors.As(err, &re)
}

// Reason explains why recovery runs.
type Reason string

const (
	// ReasonNone means the store is usable as is.
	ReasonNone Reason = ""

	// ReasonStoreMissing means the store location does not exist or holds
	// no data files.
	ReasonStoreMissing Reason = "store location missing or empty"

	// ReasonStoreEmpty means the store opened without facts while the log
	// has entries.
	ReasonStoreEmpty Reason = "store holds no data but the log has entries"
)

// Log is the read side of the transaction log.
type Log interface {
	ReadFrom(ctx context.Context, from int64) iter.Seq2[txlog.Entry, error]
	LastSeq(ctx context.Context) (int64, error)
}

// Decide applies the recovery rule. filesPresent must be probed with
// quadstore.DataFilesPresent before the store is opened, since opening
// creates the files.
func Decide(ctx context.Context, filesPresent bool, store *quadstore.Store, log Log) (Reason, error) {
	if !filesPresent {
		return ReasonStoreMissing, nil
	}
	empty, err := store.IsEmpty(ctx)
	if err != nil {
		return ReasonNone, &RecoveryError{Err: fmt.Errorf("inspect store: %w", err)}
	}
	if !empty {
		return ReasonNone, nil
	}
	head, err := log.LastSeq(ctx)
	if err != nil {
		return ReasonNone, &RecoveryError{Err: fmt.Errorf("read log head: %w", err)}
	}
	if head > 0 {
		return ReasonStoreEmpty, nil
	}
	return ReasonNone, nil
}

// Procedure replays the log into the store and rebuilds the index.
type Procedure struct {
	Store   *quadstore.Store
	Log     Log
	Index   *search.Synchronizer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Stats summarizes a recovery run.
type Stats struct {
	Entries  int
	Head     int64
	Duration time.Duration
}

// Run empties the store, re-applies every log entry in order together with
// its lifecycle bookkeeping, and rebuilds the index from the result. It must
// not run alongside commits; the caller guarantees exclusive use of the store.
func (p *Procedure) Run(ctx context.Context, reason Reason) (Stats, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	logger.Info("recovery started", "reason", string(reason))

	if err := p.Store.Reset(); err != nil {
		return Stats{}, &RecoveryError{Err: fmt.Errorf("reset store: %w", err)}
	}

	var stats Stats
	expected := int64(1)
	for e, err := range p.Log.ReadFrom(ctx, 0) {
		if err != nil {
			return stats, &RecoveryError{Seq: expected, Err: fmt.Errorf("read log: %w", err)}
		}
		if e.Seq != expected {
			return stats, &RecoveryError{Seq: e.Seq, Err: fmt.Errorf("sequence gap: expected %d", expected)}
		}
		if err := p.replay(ctx, e); err != nil {
			return stats, &RecoveryError{Seq: e.Seq, Err: err}
		}
		p.Metrics.EntryReplayed()
		stats.Entries++
		stats.Head = e.Seq
		expected++
	}
	p.Metrics.SetLogHead(stats.Head)

	err := p.Index.Rebuild(ctx, func(yield func(fact.Fact) error) error {
		return p.Store.View(ctx, func(tx *quadstore.Txn) error {
			return tx.Scan(fact.Pattern{}, yield)
		})
	})
	if err != nil {
		return stats, &RecoveryError{Err: fmt.Errorf("rebuild index: %w", err)}
	}

	stats.Duration = time.Since(start)
	logger.Info("recovery finished", "entries", stats.Entries, "head", stats.Head, "duration", stats.Duration)
	return stats, nil
}

func (p *Procedure) replay(ctx context.Context, e txlog.Entry) error {
	return p.Store.Update(ctx, func(tx *quadstore.Txn) error {
		if err := tx.Apply(e.ChangeSet); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		if _, err := lifecycle.Touch(tx, e.ChangeSet, e.Actor, e.Timestamp); err != nil {
			return fmt.Errorf("lifecycle: %w", err)
		}
		return nil
	})
}
