package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/events"
	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/lifecycle"
	"github.com/roach88/metastore/internal/quadstore"
	"github.com/roach88/metastore/internal/search"
	"github.com/roach88/metastore/internal/testutil"
	"github.com/roach88/metastore/internal/txlog"
	"github.com/roach88/metastore/internal/validation"
)

const (
	metaGraph  = "urn:graph:metadata"
	vocabGraph = "urn:graph:vocabulary"
	harvested  = "https://example.org/harvestedAt"
	hasPart    = "https://example.org/hasPart"
	isPartOf   = "https://example.org/isPartOf"
	collection = "https://example.org/Collection"
	system     = "system"
)

type fixture struct {
	engine  *Engine
	store   *quadstore.Store
	log     *txlog.Log
	index   *search.SQLiteEngine
	authz   *authz.Service
	emitter *events.ChannelEmitter
	clock   *testutil.StepClock
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	wrapLog   func(Log) Log
	wrapIndex func(search.Engine) search.Engine
	required  bool
	maxFacts  int
}

func withLog(wrap func(Log) Log) fixtureOption {
	return func(c *fixtureConfig) { c.wrapLog = wrap }
}

func withIndex(wrap func(search.Engine) search.Engine, required bool) fixtureOption {
	return func(c *fixtureConfig) { c.wrapIndex, c.required = wrap, required }
}

func withMaxFacts(n int) fixtureOption {
	return func(c *fixtureConfig) { c.maxFacts = n }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupEngine(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		wrapLog:   func(l Log) Log { return l },
		wrapIndex: func(e search.Engine) search.Engine { return e },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	dir := t.TempDir()
	logger := discardLogger()

	store, err := quadstore.Open(quadstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, err := txlog.Open(filepath.Join(dir, "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	index, err := search.OpenSQLite(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	syncer := search.NewSynchronizer(cfg.wrapIndex(index), search.WithRequired(cfg.required), search.WithLogger(logger))
	t.Cleanup(func() { syncer.Close() })

	emitter := events.NewChannelEmitter(64, events.WithIDGenerator(testutil.NewSequentialIDs("")))
	perms, err := authz.Open(authz.Config{Driver: authz.DriverSQLite, DSN: filepath.Join(dir, "authz.db")},
		authz.WithNotifier(&events.PermissionNotifier{Emitter: emitter}))
	require.NoError(t, err)
	t.Cleanup(func() { perms.Close() })

	lm, err := lifecycle.NewManager(lifecycle.Config{
		Inverses:         map[string]string{hasPart: isPartOf},
		VocabularyGraph:  vocabGraph,
		ProtectedClasses: []string{collection},
	}, lifecycle.WithRegistrar(perms), lifecycle.WithLogger(logger))
	require.NoError(t, err)

	machine := validation.NewMachineOnly([]string{system}, []string{harvested}, nil, vocabGraph)
	pipeline := validation.NewPipeline()
	pipeline.Register(metaGraph,
		validation.MachineOnlyClasses{Policy: machine},
		validation.MachineOnlyPredicates{Policy: machine},
		validation.PermissionChecking{Permissions: perms, Policy: machine},
	)
	pipeline.Register(vocabGraph,
		validation.ProtectMachineOnlyDeclarations{Policy: machine},
		validation.InverseForUsedProperties{MetadataGraph: metaGraph},
	)

	clock := testutil.NewStepClock(testutil.Epoch, 0)
	engineOpts := []Option{WithClock(clock), WithEmitter(emitter), WithLogger(logger)}
	if cfg.maxFacts > 0 {
		engineOpts = append(engineOpts, WithMaxFacts(cfg.maxFacts))
	}
	e, err := New(Config{
		Store:           store,
		Log:             cfg.wrapLog(log),
		Index:           syncer,
		Validators:      pipeline,
		Lifecycle:       lm,
		Permissions:     perms,
		MetadataGraph:   metaGraph,
		VocabularyGraph: vocabGraph,
	}, engineOpts...)
	require.NoError(t, err)

	return &fixture{engine: e, store: store, log: log, index: index, authz: perms, emitter: emitter, clock: clock}
}

func meta(subject, predicate string, object fact.Node) fact.Fact {
	return fact.New(metaGraph, fact.IRI(subject), predicate, object)
}

func label(subject, value string) fact.Fact {
	return meta(subject, fact.RDFSLabel, fact.Literal(value))
}

func (f *fixture) facts(t *testing.T) []fact.Fact {
	t.Helper()
	var out []fact.Fact
	require.NoError(t, f.store.View(context.Background(), func(tx *quadstore.Txn) error {
		var err error
		out, err = tx.Find(fact.Pattern{})
		return err
	}))
	return out
}

func (f *fixture) logEntries(t *testing.T) []txlog.Entry {
	t.Helper()
	var out []txlog.Entry
	for e, err := range f.log.ReadFrom(context.Background(), 0) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func (f *fixture) document(t *testing.T, entity string) search.Document {
	t.Helper()
	doc, _, err := f.index.Document(context.Background(), entity)
	require.NoError(t, err)
	return doc
}

func (f *fixture) drainEvents() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-f.emitter.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

// failingLog fails every append.
type failingLog struct{}

func (failingLog) Append(context.Context, txlog.Entry) (int64, error) {
	return 0, errors.New("disk full")
}

// failingIndex rejects every batch.
type failingIndex struct{ search.Engine }

func (failingIndex) Apply(context.Context, []search.Operation) error {
	return errors.New("search engine unavailable")
}
