package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/metrics"
)

// recordingEngine records batches and fails the batches listed in failOn.
type recordingEngine struct {
	mu      sync.Mutex
	batches [][]Operation
	failOn  map[int]bool
	resets  int
}

func (r *recordingEngine) Apply(_ context.Context, batch []Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.batches)
	r.batches = append(r.batches, append([]Operation(nil), batch...))
	if r.failOn[n] {
		return errors.New("engine unavailable")
	}
	return nil
}

func (r *recordingEngine) Query(context.Context, Query) ([]string, error) { return nil, nil }

func (r *recordingEngine) Document(context.Context, string) (Document, bool, error) {
	return nil, false, nil
}

func (r *recordingEngine) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return nil
}

func (r *recordingEngine) Close() error { return nil }

func (r *recordingEngine) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func TestFlushBatchesInOrder(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSynchronizer(eng, WithBatchSize(2))

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		s.Enqueue("urn:x", "label", v, OpAdd)
	}
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, []int{2, 2, 1}, eng.sizes())
	var values []string
	for _, b := range eng.batches {
		for _, op := range b {
			values = append(values, op.Value)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, values)
	assert.Zero(t, s.Pending())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSynchronizer(eng)

	require.NoError(t, s.Flush(context.Background()))
	assert.Empty(t, eng.sizes())
}

func TestFlushOptionalFailureIsSwallowed(t *testing.T) {
	eng := &recordingEngine{failOn: map[int]bool{0: true}}
	m := metrics.New()
	s := NewSynchronizer(eng, WithBatchSize(1), WithMetrics(m))

	s.Enqueue("urn:x", "label", "a", OpAdd)
	s.Enqueue("urn:x", "label", "b", OpAdd)

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, []int{1, 1}, eng.sizes(), "remaining batches are still submitted")
	assert.Zero(t, s.Pending(), "queue is cleared on the optional failure path")
}

func TestFlushRequiredFailureIsFatal(t *testing.T) {
	eng := &recordingEngine{failOn: map[int]bool{1: true}}
	s := NewSynchronizer(eng, WithBatchSize(1), WithRequired(true))
	require.True(t, s.Required())

	for _, v := range []string{"a", "b", "c"} {
		s.Enqueue("urn:x", "label", v, OpAdd)
	}

	err := s.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, IsIndexError(err))

	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Batch)
	assert.Equal(t, 1, ie.Size)
	assert.Equal(t, []int{1, 1}, eng.sizes(), "flush stops at the failed batch")
}

func TestEnqueueChangeSetMapsFields(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSynchronizer(eng, WithFields(map[string]string{fact.RDFSLabel: "label"}))

	g := "urn:graph:metadata"
	cs := fact.ChangeSet{
		Remove: fact.NewSet(fact.New(g, fact.IRI("urn:a"), fact.RDFSLabel, fact.Literal("old"))),
		Add: fact.NewSet(
			fact.New(g, fact.IRI("urn:a"), fact.RDFSLabel, fact.Literal("new")),
			fact.New(g, fact.IRI("urn:a"), fact.RDFType, fact.IRI("urn:Collection")),
			fact.New(g, fact.Blank("b1"), fact.RDFSLabel, fact.Literal("anon")),
		),
	}
	s.EnqueueChangeSet(cs)
	require.NoError(t, s.Flush(context.Background()))

	require.Len(t, eng.batches, 1)
	assert.Equal(t, []Operation{
		{Entity: "urn:a", Field: "label", Value: "old", Op: OpRemove},
		{Entity: "urn:a", Field: "label", Value: "new", Op: OpAdd},
		{Entity: "_:b1", Field: "label", Value: "anon", Op: OpAdd},
	}, eng.batches[0])
}

func TestRebuildResetsAndReindexes(t *testing.T) {
	eng := &recordingEngine{}
	s := NewSynchronizer(eng, WithBatchSize(2))
	s.Enqueue("urn:stale", "label", "x", OpAdd)

	g := "urn:graph:metadata"
	facts := []fact.Fact{
		fact.New(g, fact.IRI("urn:a"), fact.RDFSLabel, fact.Literal("A")),
		fact.New(g, fact.IRI("urn:b"), fact.RDFSLabel, fact.Literal("B")),
		fact.New(g, fact.IRI("urn:c"), fact.RDFSLabel, fact.Literal("C")),
	}
	err := s.Rebuild(context.Background(), func(yield func(fact.Fact) error) error {
		for _, f := range facts {
			if err := yield(f); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, eng.resets)
	assert.Equal(t, []int{2, 1}, eng.sizes())
	for _, b := range eng.batches {
		for _, op := range b {
			assert.NotEqual(t, "urn:stale", op.Entity, "pending operations are discarded")
		}
	}
}

func TestDocumentApply(t *testing.T) {
	d := Document{}
	d.apply(Operation{Field: "label", Value: "a", Op: OpAdd})
	d.apply(Operation{Field: "label", Value: "b", Op: OpAdd})
	d.apply(Operation{Field: "label", Value: "a", Op: OpAdd})
	assert.Equal(t, []string{"a", "b", "a"}, d["label"], "fields are multi-valued without deduplication")

	d.apply(Operation{Field: "label", Value: "a", Op: OpRemove})
	assert.Equal(t, []string{"b", "a"}, d["label"], "remove deletes one occurrence")

	d.apply(Operation{Field: "label", Value: "missing", Op: OpRemove})
	assert.Equal(t, []string{"b", "a"}, d["label"])

	d.apply(Operation{Field: "label", Value: "b", Op: OpRemove})
	d.apply(Operation{Field: "label", Value: "a", Op: OpRemove})
	assert.NotContains(t, d, "label")
}

func TestQueryLimitClamp(t *testing.T) {
	assert.Equal(t, 100, Query{}.limit())
	assert.Equal(t, 5, Query{Limit: 5}.limit())
	assert.Equal(t, MaxLimit, Query{Limit: MaxLimit + 1}.limit())
}

func TestOpQueueClosed(t *testing.T) {
	q := newOpQueue()
	assert.True(t, q.Enqueue(Operation{Entity: "a"}))
	q.Close()
	assert.False(t, q.Enqueue(Operation{Entity: "b"}))
	assert.Len(t, q.Drain(), 1)
}
