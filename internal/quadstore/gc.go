package quadstore

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// GCRunner runs periodic value log garbage collection.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewGCRunner creates a runner. It does nothing until Start is called.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, errors.New("ratio must be between 0 and 1 (exclusive)")
	}

	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins periodic collection in a goroutine.
func (r *GCRunner) Start() {
	go r.run()
}

// Stop halts collection and waits for the goroutine to exit.
// Safe to call more than once.
func (r *GCRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *GCRunner) runGC() {
	// ErrNoRewrite only means there was nothing worth collecting.
	err := r.db.RunValueLogGC(r.ratio)
	if r.logger == nil {
		return
	}
	switch {
	case err == nil:
		r.logger.Debug("value log GC completed")
	case !errors.Is(err, badger.ErrNoRewrite):
		r.logger.Warn("value log GC failed", "error", err)
	}
}
