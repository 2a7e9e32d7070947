package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/metrics"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/search"
)

// withGraph places facts without a graph in the metadata graph. Facts are
// checked before they are keyed into the set, so a malformed fact cannot
// collapse into a well-formed one.
func (e *Engine) withGraph(facts []fact.Fact) (fact.Set, error) {
	placed := make([]fact.Fact, len(facts))
	for i, f := range facts {
		if f.Graph == "" {
			f.Graph = e.metadataGraph
		}
		placed[i] = f
	}
	if err := rejectMalformed(placed); err != nil {
		e.metrics.ObserveCommit(metrics.OutcomeRejected, 0)
		return nil, err
	}
	return fact.NewSet(placed...), nil
}

func (e *Engine) pattern(p fact.Pattern) fact.Pattern {
	if p.Graph == "" {
		p.Graph = e.metadataGraph
	}
	return p
}

// Put adds facts.
func (e *Engine) Put(ctx context.Context, actor string, facts []fact.Fact) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	add, err := e.withGraph(facts)
	if err != nil {
		return Result{}, err
	}
	return e.commitLocked(ctx, actor, fact.ChangeSet{Remove: fact.NewSet(), Add: add})
}

// Delete removes every fact matching p. Unset components of p are
// wildcards; an unset graph means the metadata graph.
func (e *Engine) Delete(ctx context.Context, actor string, p fact.Pattern) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched []fact.Fact
	err := e.store.View(ctx, func(tx *quadstore.Txn) error {
		var err error
		matched, err = tx.Find(e.pattern(p))
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("delete: resolve pattern: %w", err)
	}
	return e.commitLocked(ctx, actor, fact.ChangeSet{Remove: fact.NewSet(matched...), Add: fact.NewSet()})
}

// Patch adds facts, replacing the stored values of every (subject,
// predicate) pair they name. Blank-node subjects are not replaced, only
// added to.
func (e *Engine) Patch(ctx context.Context, actor string, facts []fact.Fact) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	add, err := e.withGraph(facts)
	if err != nil {
		return Result{}, err
	}
	remove := fact.NewSet()
	err = e.store.View(ctx, func(tx *quadstore.Txn) error {
		seen := make(map[string]bool)
		for _, f := range add.Facts() {
			if !f.Subject.IsIRI() {
				continue
			}
			key := f.Graph + "\x00" + f.Subject.Key() + "\x00" + f.Predicate
			if seen[key] {
				continue
			}
			seen[key] = true

			subject := f.Subject
			current, err := tx.Find(fact.Pattern{Graph: f.Graph, Subject: &subject, Predicate: f.Predicate})
			if err != nil {
				return err
			}
			for _, c := range current {
				remove.Add(c)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("patch: read current values: %w", err)
	}
	return e.commitLocked(ctx, actor, fact.ChangeSet{Remove: remove, Add: add})
}

var errLimit = errors.New("limit reached")

// Get returns the facts matching p in canonical order. It fails with a
// LimitError when more than the configured maximum match.
func (e *Engine) Get(ctx context.Context, p fact.Pattern) ([]fact.Fact, error) {
	out := []fact.Fact{}
	err := e.store.View(ctx, func(tx *quadstore.Txn) error {
		return tx.Scan(e.pattern(p), func(f fact.Fact) error {
			if len(out) == e.maxFacts {
				return errLimit
			}
			out = append(out, f)
			return nil
		})
	})
	if errors.Is(err, errLimit) {
		return nil, &LimitError{Limit: e.maxFacts}
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	slices.SortFunc(out, fact.Compare)
	return out, nil
}

// QueryText runs a full-text query against the search index and returns
// entity identifiers, best match first. An empty field searches every
// indexed field.
func (e *Engine) QueryText(ctx context.Context, term, field string, limit int) ([]string, error) {
	return e.index.Engine().Query(ctx, search.Query{Term: term, Field: field, Limit: limit})
}

// Lifecycle returns the lifecycle record of an IRI subject.
func (e *Engine) Lifecycle(ctx context.Context, iri string) (lifecycle.Record, bool, error) {
	var (
		rec lifecycle.Record
		ok  bool
	)
	err := e.store.View(ctx, func(tx *quadstore.Txn) error {
		var err error
		rec, ok, err = lifecycle.Get(tx, iri)
		return err
	})
	return rec, ok, err
}

// Authorize changes subject's access level on resource on behalf of actor.
func (e *Engine) Authorize(ctx context.Context, actor, subject, resource string, level authz.Level, createCollectionAllowed bool) error {
	return e.permissions.Authorize(ctx, actor, authz.Permission{Subject: subject, Resource: resource, Level: level}, createCollectionAllowed)
}

// GetPermission returns actor's access level on resource.
func (e *Engine) GetPermission(ctx context.Context, actor, resource string) (authz.Permission, error) {
	return e.permissions.GetPermission(ctx, actor, resource)
}

// Permissions lists every grant on resource.
func (e *Engine) Permissions(ctx context.Context, resource string) ([]authz.Permission, error) {
	return e.permissions.Permissions(ctx, resource)
}
