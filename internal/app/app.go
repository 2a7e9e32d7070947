// Package app assembles a running metastore from a configuration: it opens
// every component, wires them into the transaction coordinator and runs
// startup recovery before handing the coordinator out.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/config"
	"github.com/roach88/metastore/internal/engine"
	"github.com/roach88/metastore/internal/events"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/metrics"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/recovery"
	"github.com/roach88/metastore/internal/search"
	"github.com/roach88/metastore/internal/txlog"
	"github.com/roach88/metastore/internal/validation"
)

// App owns every open component. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Engine  *engine.Engine
	Store   *quadstore.Store
	Log     *txlog.Log
	Index   *search.Synchronizer
	Authz   *authz.Service
	Emitter *events.ChannelEmitter
	Metrics *metrics.Metrics

	// Recovered is the reason startup recovery ran, or ReasonNone.
	Recovered recovery.Reason

	logger  *slog.Logger
	closers []func() error
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	clock  engine.Clock
	ids    events.IDGenerator
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the commit clock.
func WithClock(c engine.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the event ID generator.
func WithIDGenerator(g events.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// Open builds an App from cfg. On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Metrics: metrics.New(), logger: o.logger}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	// Opening badger creates its files, so probe first.
	present, err := quadstore.DataFilesPresent(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("probe store: %w", err)
	}

	if err := a.openStorage(cfg); err != nil {
		return nil, err
	}
	if err := a.openIndex(ctx, cfg); err != nil {
		return nil, err
	}

	emitterOpts := []events.Option{
		events.WithRequired(cfg.Events.Required),
		events.WithTimeout(cfg.Events.Timeout),
		events.WithLogger(o.logger),
		events.WithMetrics(a.Metrics),
	}
	if o.ids != nil {
		emitterOpts = append(emitterOpts, events.WithIDGenerator(o.ids))
	}
	if o.clock != nil {
		emitterOpts = append(emitterOpts, events.WithClock(o.clock.Now))
	}
	a.Emitter = events.NewChannelEmitter(cfg.Events.Buffer, emitterOpts...)
	a.closers = append(a.closers, func() error { a.Emitter.Close(); return nil })

	authzOpts := []authz.Option{
		authz.WithNotifier(&events.PermissionNotifier{Emitter: a.Emitter}),
		authz.WithLogger(o.logger),
	}
	if o.clock != nil {
		authzOpts = append(authzOpts, authz.WithClock(o.clock.Now))
	}
	a.Authz, err = authz.Open(authz.Config{Driver: cfg.Authz.Driver, DSN: cfg.Authz.DSN}, authzOpts...)
	if err != nil {
		return nil, fmt.Errorf("open authorization: %w", err)
	}
	a.closers = append(a.closers, a.Authz.Close)

	lm, err := lifecycle.NewManager(lifecycle.Config{
		Inverses:         cfg.Inverses,
		VocabularyGraph:  cfg.Graphs.Vocabulary,
		ProtectedClasses: cfg.Authz.ProtectedClasses,
	}, lifecycle.WithRegistrar(a.Authz), lifecycle.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("configure lifecycle: %w", err)
	}

	pipeline, err := buildPipeline(cfg, a.Authz)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithEmitter(a.Emitter),
		engine.WithMaxFacts(cfg.MaxFactsToReturn),
		engine.WithLogger(o.logger),
		engine.WithMetrics(a.Metrics),
	}
	if o.clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(o.clock))
	}
	a.Engine, err = engine.New(engine.Config{
		Store:           a.Store,
		Log:             a.Log,
		Index:           a.Index,
		Validators:      pipeline,
		Lifecycle:       lm,
		Permissions:     a.Authz,
		MetadataGraph:   cfg.Graphs.Metadata,
		VocabularyGraph: cfg.Graphs.Vocabulary,
	}, engineOpts...)
	if err != nil {
		return nil, err
	}

	reason, err := recovery.Decide(ctx, present, a.Store, a.Log)
	if err != nil {
		return nil, err
	}
	if reason != recovery.ReasonNone {
		if _, err := a.Recover(ctx, reason); err != nil {
			return nil, err
		}
		a.Recovered = reason
	} else {
		head, err := a.Log.LastSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("read log head: %w", err)
		}
		a.Metrics.SetLogHead(head)
	}
	return a, nil
}

func (a *App) openStorage(cfg *config.Config) error {
	var err error
	a.Store, err = quadstore.Open(quadstore.Config{
		Path:           cfg.Store.Path,
		SyncWrites:     cfg.Store.SyncWrites,
		Logger:         a.logger,
		GCInterval:     cfg.Store.GCInterval,
		GCDiscardRatio: cfg.Store.GCDiscardRatio,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Log, err = txlog.Open(cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.closers = append(a.closers, a.Log.Close)
	return nil
}

func (a *App) openIndex(ctx context.Context, cfg *config.Config) error {
	fields := cfg.Search.Fields
	if len(fields) == 0 {
		fields = search.DefaultFields()
	}

	var backend search.Engine
	switch cfg.Search.Backend {
	case config.BackendWeaviate:
		names := slices.Sorted(maps.Values(fields))
		e, err := search.NewWeaviateEngine(ctx, search.WeaviateConfig{
			Host:   cfg.Search.Weaviate.Host,
			Scheme: cfg.Search.Weaviate.Scheme,
			Class:  cfg.Search.Weaviate.Class,
			Fields: slices.Compact(names),
			Logger: a.logger,
		})
		if err != nil {
			return fmt.Errorf("open weaviate index: %w", err)
		}
		backend = e
	default:
		e, err := search.OpenSQLite(cfg.Search.Path)
		if err != nil {
			return fmt.Errorf("open sqlite index: %w", err)
		}
		backend = e
	}

	a.Index = search.NewSynchronizer(backend,
		search.WithFields(fields),
		search.WithBatchSize(cfg.Search.BatchSize),
		search.WithRequired(cfg.Search.Required),
		search.WithLogger(a.logger),
		search.WithMetrics(a.Metrics),
	)
	a.closers = append(a.closers, a.Index.Close)
	return nil
}

func buildPipeline(cfg *config.Config, perms *authz.Service) (*validation.Pipeline, error) {
	v := cfg.Validation
	machine := validation.NewMachineOnly(v.SystemActors, v.MachineOnlyPredicates, v.MachineOnlyClasses, cfg.Graphs.Vocabulary)

	metadata := []validation.Validator{
		validation.MachineOnlyClasses{Policy: machine},
		validation.MachineOnlyPredicates{Policy: machine},
		validation.PermissionChecking{Permissions: perms, Policy: machine},
	}
	if v.Shapes != "" {
		shapes, err := validation.LoadShapes(v.Shapes)
		if err != nil {
			return nil, fmt.Errorf("load shapes: %w", err)
		}
		metadata = append(metadata, validation.NewShapeValidator(shapes))
	}

	terms := make(map[string]bool, len(v.SystemVocabulary))
	for _, t := range v.SystemVocabulary {
		terms[t] = true
	}

	p := validation.NewPipeline()
	p.Register(cfg.Graphs.Metadata, metadata...)
	p.Register(cfg.Graphs.Vocabulary,
		validation.ProtectMachineOnlyDeclarations{Policy: machine},
		validation.ProtectSystemVocabulary{Terms: terms},
		validation.InverseForUsedProperties{MetadataGraph: cfg.Graphs.Metadata},
	)
	p.RegisterFallback(
		validation.MachineOnlyPredicates{Policy: machine},
		validation.PermissionChecking{Permissions: perms, Policy: machine},
	)
	return p, nil
}

// Recover rebuilds the store and index from the log. Open calls it when
// the recovery rule fires; the recover command calls it unconditionally.
func (a *App) Recover(ctx context.Context, reason recovery.Reason) (recovery.Stats, error) {
	p := &recovery.Procedure{
		Store:   a.Store,
		Log:     a.Log,
		Index:   a.Index,
		Logger:  a.logger,
		Metrics: a.Metrics,
	}
	return p.Run(ctx, reason)
}

// Close releases every component and writes the metrics textfile when one
// is configured.
func (a *App) Close() error {
	var errs []error
	if path := a.Config.Metrics.Textfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
