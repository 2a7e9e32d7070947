package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/metrics"
)

// DefaultBatchSize is the number of operations submitted per engine call.
const DefaultBatchSize = 1000

// Synchronizer keeps an Engine in step with committed change-sets.
type Synchronizer struct {
	engine    Engine
	pending   *opQueue
	fields    map[string]string
	batchSize int
	required  bool
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// flushMu keeps flushes from overlapping.
	flushMu sync.Mutex
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithBatchSize sets the number of operations per engine call.
func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRequired makes batch failures fatal. By default they are logged and
// dropped, and the index catches up on the next rebuild.
func WithRequired(required bool) Option {
	return func(s *Synchronizer) { s.required = required }
}

// WithFields maps predicate IRIs to index field names. Facts whose predicate
// is not mapped are not indexed.
func WithFields(fields map[string]string) Option {
	return func(s *Synchronizer) {
		s.fields = make(map[string]string, len(fields))
		for p, f := range fields {
			s.fields[p] = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithMetrics records flush timings and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// DefaultFields indexes labels and comments.
func DefaultFields() map[string]string {
	return map[string]string{
		fact.RDFSLabel:   "label",
		fact.RDFSComment: "comment",
	}
}

// NewSynchronizer creates a synchronizer over engine.
func NewSynchronizer(engine Engine, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		engine:    engine,
		pending:   newOpQueue(),
		fields:    DefaultFields(),
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the backing engine.
func (s *Synchronizer) Engine() Engine {
	return s.engine
}

// Required reports whether batch failures are fatal.
func (s *Synchronizer) Required() bool {
	return s.required
}

// Enqueue buffers one field operation until the next Flush.
func (s *Synchronizer) Enqueue(entity, field, value string, op Op) {
	s.pending.Enqueue(Operation{Entity: entity, Field: field, Value: value, Op: op})
}

// EnqueueChangeSet buffers the operations that mirror cs: removals first,
// then additions, each in canonical fact order.
func (s *Synchronizer) EnqueueChangeSet(cs fact.ChangeSet) {
	s.pending.Enqueue(s.operations(cs.Remove, OpRemove)...)
	s.pending.Enqueue(s.operations(cs.Add, OpAdd)...)
}

func (s *Synchronizer) operations(facts fact.Set, op Op) []Operation {
	var ops []Operation
	for _, f := range facts.Facts() {
		field, ok := s.fields[f.Predicate]
		if !ok {
			continue
		}
		ops = append(ops, Operation{
			Entity: EntityID(f.Subject),
			Field:  field,
			Value:  f.Object.CanonicalValue(),
			Op:     op,
		})
	}
	return ops
}

// EntityID is the document identifier for a subject node.
func EntityID(n fact.Node) string {
	if n.IsBlank() {
		return "_:" + n.Value
	}
	return n.Value
}

// Pending returns the number of buffered operations.
func (s *Synchronizer) Pending() int {
	return s.pending.Len()
}

// Flush submits every buffered operation in batches of the configured size
// and blocks until the engine has acknowledged each one.
//
// The buffer is emptied on entry. When indexing is required the first
// rejected batch stops the flush and an IndexError is returned; otherwise
// the failure is logged and the remaining batches are still submitted.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	ops := s.pending.Drain()
	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { s.metrics.ObserveFlush(time.Since(start), len(ops)) }()

	for batch, lo := 0, 0; lo < len(ops); batch, lo = batch+1, lo+s.batchSize {
		hi := min(lo+s.batchSize, len(ops))
		if err := s.engine.Apply(ctx, ops[lo:hi]); err != nil {
			if s.required {
				s.metrics.IndexBatchFailed("required")
				s.logger.Error("index batch failed", "policy", "required", "batch", batch, "size", hi-lo, "error", err)
				return &IndexError{Batch: batch, Size: hi - lo, Err: err}
			}
			s.metrics.IndexBatchFailed("optional")
			s.logger.Warn("index batch failed", "policy", "optional", "batch", batch, "size", hi-lo, "error", err)
		}
	}
	return nil
}

// Rebuild drops the index and re-indexes every fact produced by scan.
// Pending operations are discarded first; they describe a state the rebuild
// supersedes.
func (s *Synchronizer) Rebuild(ctx context.Context, scan func(yield func(fact.Fact) error) error) error {
	s.pending.Clear()
	if err := s.engine.Reset(ctx); err != nil {
		if s.required {
			return &IndexError{Batch: -1, Err: err}
		}
		s.logger.Warn("index reset failed", "policy", "optional", "error", err)
		return nil
	}

	err := scan(func(f fact.Fact) error {
		s.pending.Enqueue(s.operations(fact.NewSet(f), OpAdd)...)
		if s.pending.Len() >= s.batchSize {
			return s.Flush(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.Flush(ctx)
}

// Close discards pending operations and closes the engine.
func (s *Synchronizer) Close() error {
	s.pending.Close()
	s.pending.Clear()
	return s.engine.Close()
}
