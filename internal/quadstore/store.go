package quadstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// Infof logs at debug: badger reports every compaction at info.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the primary fact store.
type Store struct {
	db       *badger.DB
	gc       *GCRunner
	path     string
	inMemory bool
}

// Open opens or creates the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, path: cfg.Path, inMemory: cfg.InMemory}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.Start()
	}

	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.Stop()
		s.gc = nil
	}
	return s.db.Close()
}

// Path returns the store directory, or "" for an in-memory store.
func (s *Store) Path() string {
	if s.inMemory {
		return ""
	}
	return s.path
}

// Update runs fn in a read-write transaction and commits if fn returns nil.
// Nothing fn wrote is visible to anyone if it returns an error.
func (s *Store) Update(ctx context.Context, fn func(*Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&Txn{txn: txn}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(*Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(&Txn{txn: txn})
}

// IsEmpty reports whether the store holds no facts.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	empty := true
	err := s.View(ctx, func(t *Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(factPrefix)
		it := t.txn.NewIterator(opts)
		defer it.Close()

		it.Seek(opts.Prefix)
		empty = !it.ValidForPrefix(opts.Prefix)
		return nil
	})
	return empty, err
}

// Count returns the number of stored facts.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.View(ctx, func(t *Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(factPrefix)
		it := t.txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Reset drops every key, leaving an empty store.
func (s *Store) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	return nil
}

// DataFilesPresent reports whether dir exists and holds BadgerDB data files.
// A missing directory is not an error.
func DataFilesPresent(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read store directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".sst", ".vlog", ".mem":
			return true, nil
		}
	}
	return false, nil
}
