package txlog

import (
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/metastore/internal/fact"
)

func TestReadFrom_RoundTrip(t *testing.T) {
	l := createTestLog(t)

	cs := fact.ChangeSet{
		Remove: fact.NewSet(fact.New(testGraph, fact.IRI("urn:s"), "urn:p", fact.Literal("old"))),
		Add: fact.NewSet(
			fact.New(testGraph, fact.IRI("urn:s"), "urn:p", fact.LangLiteral("new", "en")),
			fact.New(testGraph, fact.Blank("b0"), "urn:p", fact.TypedLiteral("7", "urn:int")),
		),
	}
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

	seq, err := l.Append(context.Background(), Entry{Timestamp: at, Actor: "alice", ChangeSet: cs})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	got := collect(t, l, 0)
	if len(got) != 1 {
		t.Fatalf("ReadFrom(0) returned %d entries, want 1", len(got))
	}
	e := got[0]
	if e.Seq != seq || e.Actor != "alice" || !e.Timestamp.Equal(at) {
		t.Errorf("entry header = (%d, %q, %v), want (%d, alice, %v)", e.Seq, e.Actor, e.Timestamp, seq, at)
	}
	if e.ChangeSet.Remove.Len() != 1 || e.ChangeSet.Add.Len() != 2 {
		t.Fatalf("change set sizes = (%d, %d), want (1, 2)", e.ChangeSet.Remove.Len(), e.ChangeSet.Add.Len())
	}
	for _, f := range cs.Add.Facts() {
		if !e.ChangeSet.Add.Contains(f) {
			t.Errorf("decoded add set is missing %s", f)
		}
	}
}

func TestReadFrom_StartOffset(t *testing.T) {
	l := createTestLog(t)
	for i := 0; i < 5; i++ {
		mustAppend(t, l, "alice", labelChange("urn:a", "v"))
	}

	tests := []struct {
		from     int64
		wantSeqs []int64
	}{
		{0, []int64{1, 2, 3, 4, 5}},
		{1, []int64{1, 2, 3, 4, 5}},
		{3, []int64{3, 4, 5}},
		{5, []int64{5}},
		{6, nil},
	}
	for _, tt := range tests {
		got := collect(t, l, tt.from)
		if len(got) != len(tt.wantSeqs) {
			t.Errorf("ReadFrom(%d) returned %d entries, want %d", tt.from, len(got), len(tt.wantSeqs))
			continue
		}
		for i, e := range got {
			if e.Seq != tt.wantSeqs[i] {
				t.Errorf("ReadFrom(%d)[%d].Seq = %d, want %d", tt.from, i, e.Seq, tt.wantSeqs[i])
			}
		}
	}
}

func TestReadFrom_Restartable(t *testing.T) {
	l := createTestLog(t)
	for i := 0; i < 3; i++ {
		mustAppend(t, l, "alice", labelChange("urn:a", "v"))
	}

	seq := l.ReadFrom(context.Background(), 0)
	first, second := 0, 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("first pass: %v", err)
		}
		first++
	}
	for _, err := range seq {
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		second++
	}
	if first != 3 || second != 3 {
		t.Errorf("passes yielded %d and %d entries, want 3 and 3", first, second)
	}
}

func TestReadFrom_CrossesPageBoundary(t *testing.T) {
	l := createTestLog(t)
	total := pageSize + 10
	for i := 0; i < total; i++ {
		mustAppend(t, l, "alice", labelChange("urn:a", "v"))
	}

	got := collect(t, l, 0)
	if len(got) != total {
		t.Fatalf("ReadFrom(0) returned %d entries, want %d", len(got), total)
	}
	for i, e := range got {
		if e.Seq != int64(i+1) {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
	}
}

func TestReadFrom_EarlyBreak(t *testing.T) {
	l := createTestLog(t)
	for i := 0; i < 4; i++ {
		mustAppend(t, l, "alice", labelChange("urn:a", "v"))
	}

	n := 0
	for _, err := range l.ReadFrom(context.Background(), 0) {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 2 {
			break
		}
	}

	// The connection must be free again after an early break.
	mustAppend(t, l, "alice", labelChange("urn:a", "v"))
}

func TestReadFrom_DetectsChecksumMismatch(t *testing.T) {
	l := createTestLog(t)
	mustAppend(t, l, "alice", labelChange("urn:a", "v"))

	// Insert a row by hand with a bogus checksum.
	_, err := l.db.Exec(`INSERT INTO entries (seq, committed_at, actor, change_set, hash)
		VALUES (2, 0, 'mallory', '{"add":[],"remove":[]}', 'deadbeef')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	var lastErr error
	n := 0
	for _, err := range l.ReadFrom(context.Background(), 0) {
		if err != nil {
			lastErr = err
			break
		}
		n++
	}
	if lastErr == nil {
		t.Fatal("ReadFrom should report the corrupt entry")
	}
	if !IsCorruptEntry(lastErr) {
		t.Errorf("error = %v, want CorruptEntryError", lastErr)
	}
	// The page containing the bad row is rejected as a whole.
	if n != 0 {
		t.Errorf("yielded %d entries before the error, want 0", n)
	}
}

func TestReadFrom_CancelledContext(t *testing.T) {
	l := createTestLog(t)
	mustAppend(t, l, "alice", labelChange("urn:a", "v"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range l.ReadFrom(ctx, 0) {
		if err == nil {
			t.Fatal("ReadFrom with cancelled context should fail")
		}
		return
	}
	t.Fatal("ReadFrom with cancelled context yielded nothing")
}

func TestChangeSetEncoding_Golden(t *testing.T) {
	l := createTestLog(t)

	cs := fact.ChangeSet{
		Remove: fact.NewSet(fact.New(testGraph, fact.IRI("urn:s"), "urn:p", fact.Literal("old"))),
		Add: fact.NewSet(
			fact.New(testGraph, fact.IRI("urn:s"), "urn:p", fact.LangLiteral("new", "en")),
			fact.New(testGraph, fact.IRI("urn:s"), fact.RDFType, fact.IRI("urn:Class")),
		),
	}
	mustAppend(t, l, "alice", cs)

	var stored string
	if err := l.db.QueryRow("SELECT change_set FROM entries WHERE seq = 1").Scan(&stored); err != nil {
		t.Fatalf("select: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "entry_change_set", []byte(stored))
}
