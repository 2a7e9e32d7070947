package txlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

const testGraph = "urn:g"

// createTestLog opens a fresh log in a temp directory.
func createTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// labelChange builds a change-set that adds one label to subject.
func labelChange(subject, label string) fact.ChangeSet {
	return fact.ChangeSet{
		Remove: fact.NewSet(),
		Add:    fact.NewSet(fact.New(testGraph, fact.IRI(subject), fact.RDFSLabel, fact.Literal(label))),
	}
}

func mustAppend(t *testing.T, l *Log, actor string, cs fact.ChangeSet) int64 {
	t.Helper()
	seq, err := l.Append(context.Background(), Entry{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Actor:     actor,
		ChangeSet: cs,
	})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	return seq
}

func collect(t *testing.T, l *Log, from int64) []Entry {
	t.Helper()
	var out []Entry
	for e, err := range l.ReadFrom(context.Background(), from) {
		if err != nil {
			t.Fatalf("ReadFrom(%d) failed: %v", from, err)
		}
		out = append(out, e)
	}
	return out
}
