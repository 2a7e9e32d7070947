package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates event IDs "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. If prefix is empty, "event" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "event"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements events.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
