package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/events"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/metrics"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/search"
	"github.com/roach88/metastore/internal/txlog"
	"github.com/roach88/metastore/internal/validation"
)

// DefaultMaxFacts bounds the result size of Get.
const DefaultMaxFacts = 50000

// Log is the transaction log as seen by the coordinator.
type Log interface {
	Append(ctx context.Context, e txlog.Entry) (int64, error)
}

// Permissions is the authorization subsystem as seen by the coordinator.
type Permissions interface {
	Authorize(ctx context.Context, actor string, target authz.Permission, createCollectionAllowed bool) error
	GetPermission(ctx context.Context, actor, resource string) (authz.Permission, error)
	Permissions(ctx context.Context, resource string) ([]authz.Permission, error)
}

// Config holds the components the coordinator drives.
type Config struct {
	Store       *quadstore.Store
	Log         Log
	Index       *search.Synchronizer
	Validators  *validation.Pipeline
	Lifecycle   *lifecycle.Manager
	Permissions Permissions

	// MetadataGraph is the default graph of Put, Patch, Delete and Get.
	MetadataGraph string

	// VocabularyGraph is reported as the VOCABULARY event category.
	VocabularyGraph string
}

// Engine is the transaction coordinator. Commits are serialized by a single
// lock; reads run concurrently with each other and with commits.
type Engine struct {
	// mu makes a commit's validation View and its write Update one atomic
	// step; badger does not hold the read snapshot across the two.
	mu sync.Mutex

	store       *quadstore.Store
	log         Log
	index       *search.Synchronizer
	validators  *validation.Pipeline
	lifecycle   *lifecycle.Manager
	permissions Permissions

	metadataGraph   string
	vocabularyGraph string

	emitter  events.Emitter
	clock    Clock
	maxFacts int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets where commit events are delivered. Without one, events
// are not produced.
func WithEmitter(em events.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithClock sets the commit timestamp source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxFacts bounds the number of facts Get may return.
func WithMaxFacts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFacts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("engine: store is required")
	case cfg.Log == nil:
		return nil, errors.New("engine: log is required")
	case cfg.Index == nil:
		return nil, errors.New("engine: index synchronizer is required")
	case cfg.Validators == nil:
		return nil, errors.New("engine: validation pipeline is required")
	case cfg.Lifecycle == nil:
		return nil, errors.New("engine: lifecycle manager is required")
	case cfg.Permissions == nil:
		return nil, errors.New("engine: permissions are required")
	case cfg.MetadataGraph == "":
		return nil, errors.New("engine: metadata graph is required")
	}

	e := &Engine{
		store:           cfg.Store,
		log:             cfg.Log,
		index:           cfg.Index,
		validators:      cfg.Validators,
		lifecycle:       cfg.Lifecycle,
		permissions:     cfg.Permissions,
		metadataGraph:   cfg.MetadataGraph,
		vocabularyGraph: cfg.VocabularyGraph,
		clock:           SystemClock{},
		maxFacts:        DefaultMaxFacts,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MetadataGraph returns the default graph.
func (e *Engine) MetadataGraph() string { return e.metadataGraph }
