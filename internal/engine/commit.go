package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/metastore/internal/events"
	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/metrics"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/txlog"
	"github.com/roach88/metastore/internal/validation"
)

// Result describes a finished commit.
type Result struct {
	// Seq is the log sequence number of the commit, or 0 for a no-op.
	Seq int64

	// Timestamp is when the commit was applied.
	Timestamp time.Time

	// ChangeSet is the net change: inferred facts included, facts that
	// would not change state excluded.
	ChangeSet fact.ChangeSet
}

// Noop reports whether the commit changed nothing.
func (r Result) Noop() bool { return r.Seq == 0 }

// Commit applies a change-set on behalf of actor.
func (e *Engine) Commit(ctx context.Context, actor string, remove, add fact.Set) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked(ctx, actor, fact.NewChangeSet(remove, add))
}

func (e *Engine) commitLocked(ctx context.Context, actor string, cs fact.ChangeSet) (res Result, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeCommitted
		switch {
		case validation.IsValidationError(err):
			outcome = metrics.OutcomeRejected
		case err != nil && res.Seq == 0:
			outcome = metrics.OutcomeFailed
		case res.Seq == 0:
			outcome = metrics.OutcomeNoop
		}
		e.metrics.ObserveCommit(outcome, time.Since(start))
	}()

	if actor == "" {
		return Result{}, errors.New("commit: actor is required")
	}

	cs = cs.Normalize()
	if err := rejectMalformed(cs.Remove.Facts(), cs.Add.Facts()); err != nil {
		return Result{}, err
	}

	var effective fact.ChangeSet
	err = e.store.View(ctx, func(tx *quadstore.Txn) error {
		cache := e.lifecycle.NewCache(tx)
		inferred, err := e.lifecycle.Infer(cs, cache)
		if err != nil {
			return fmt.Errorf("infer: %w", err)
		}
		if err := e.validators.Validate(ctx, actor, inferred, tx); err != nil {
			return err
		}
		effective, err = effectiveChange(tx, inferred)
		return err
	})
	if err != nil {
		if vs := validation.Violations(err); vs != nil {
			e.metrics.AddViolations(len(vs))
			e.logger.Info("commit rejected", "actor", actor, "violations", len(vs))
		}
		return Result{}, err
	}
	if effective.IsEmpty() {
		e.logger.Debug("commit is a no-op", "actor", actor)
		return Result{ChangeSet: effective}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// From here on the commit runs to completion.
	wctx := context.WithoutCancel(ctx)
	at := e.clock.Now().UTC()

	var snap lifecycle.Snapshot
	err = e.store.Update(wctx, func(tx *quadstore.Txn) error {
		if err := tx.Apply(effective); err != nil {
			return err
		}
		var err error
		snap, err = e.lifecycle.Touch(tx, effective, actor, at)
		return err
	})
	if err != nil {
		return Result{}, &StoreError{Op: "apply change", Err: err}
	}

	created, err := e.lifecycle.Register(wctx, effective, actor)
	if err != nil {
		return Result{}, errors.Join(&StoreError{Op: "register resources", Err: err}, e.compensate(wctx, effective, snap))
	}

	seq, err := e.log.Append(wctx, txlog.Entry{Timestamp: at, Actor: actor, ChangeSet: effective})
	if err != nil {
		cerr := e.compensate(wctx, effective, snap)
		if uerr := e.lifecycle.Unregister(wctx, created); uerr != nil {
			cerr = errors.Join(cerr, uerr)
		}
		return Result{}, errors.Join(&LogError{Err: err}, cerr)
	}
	e.metrics.SetLogHead(seq)

	res = Result{Seq: seq, Timestamp: at, ChangeSet: effective}
	e.logger.Info("commit accepted",
		"seq", seq,
		"actor", actor,
		"removed", effective.Remove.Len(),
		"added", effective.Add.Len(),
	)

	e.index.EnqueueChangeSet(effective)
	if err := e.index.Flush(wctx); err != nil {
		return res, err
	}

	if e.emitter != nil {
		for _, ev := range events.CommitEvents(seq, actor, at, effective, e.vocabularyGraph) {
			if err := e.emitter.Emit(wctx, ev); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// compensate undoes an applied change and its lifecycle records.
func (e *Engine) compensate(ctx context.Context, applied fact.ChangeSet, snap lifecycle.Snapshot) error {
	err := e.store.Update(ctx, func(tx *quadstore.Txn) error {
		if err := tx.Apply(applied.Inverse()); err != nil {
			return err
		}
		return lifecycle.Restore(tx, snap)
	})
	if err != nil {
		e.logger.Error("compensation failed; store and log may disagree until recovery", "error", err)
		return fmt.Errorf("compensate: %w", err)
	}
	return nil
}

// effectiveChange keeps the removals of present facts that are not re-added
// and the additions of absent facts.
func effectiveChange(tx *quadstore.Txn, cs fact.ChangeSet) (fact.ChangeSet, error) {
	out := fact.ChangeSet{Remove: fact.NewSet(), Add: fact.NewSet()}
	for _, f := range cs.Remove {
		if cs.Add.Contains(f) {
			continue
		}
		ok, err := tx.Contains(f)
		if err != nil {
			return fact.ChangeSet{}, err
		}
		if ok {
			out.Remove.Add(f)
		}
	}
	for _, f := range cs.Add {
		ok, err := tx.Contains(f)
		if err != nil {
			return fact.ChangeSet{}, err
		}
		if !ok {
			out.Add.Add(f)
		}
	}
	return out, nil
}

// rejectMalformed turns structurally invalid facts into violations.
func rejectMalformed(sides ...[]fact.Fact) error {
	var vs []validation.Violation
	for _, side := range sides {
		for _, f := range side {
			if err := f.Validate(); err != nil {
				obj := f.Object
				vs = append(vs, validation.Violation{
					Message:   "malformed fact: " + err.Error(),
					Subject:   f.Subject,
					Predicate: f.Predicate,
					Object:    &obj,
				})
			}
		}
	}
	if len(vs) == 0 {
		return nil
	}
	validation.SortViolations(vs)
	return &validation.ValidationError{Violations: vs}
}
