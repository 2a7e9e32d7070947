package quadstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGCRunnerValidation(t *testing.T) {
	s := setupTestStore(t)

	_, err := NewGCRunner(nil, time.Second, 0.5, nil)
	assert.Error(t, err, "nil db")

	_, err = NewGCRunner(s.db, 0, 0.5, nil)
	assert.Error(t, err, "zero interval")

	_, err = NewGCRunner(s.db, time.Second, 1.5, nil)
	assert.Error(t, err, "ratio out of range")

	r, err := NewGCRunner(s.db, time.Second, 0.5, nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestGCRunnerStartStop(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "store"))
	cfg.GCInterval = 10 * time.Millisecond

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, s.gc)

	time.Sleep(30 * time.Millisecond)

	// Close stops the runner; a second Stop must not block or panic.
	gc := s.gc
	require.NoError(t, s.Close())
	gc.Stop()
}
