package txlog

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	l := createTestLog(t)

	for want := int64(1); want <= 5; want++ {
		got := mustAppend(t, l, "alice", labelChange("urn:a", "v"))
		if got != want {
			t.Errorf("Append() = %d, want %d", got, want)
		}
	}
}

func TestAppend_IgnoresCallerSeq(t *testing.T) {
	l := createTestLog(t)

	seq, err := l.Append(context.Background(), Entry{
		Seq:       42,
		Timestamp: time.Unix(1, 0),
		Actor:     "alice",
		ChangeSet: labelChange("urn:a", "v"),
	})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("Append() = %d, want 1", seq)
	}
}

func TestAppend_RequiresActor(t *testing.T) {
	l := createTestLog(t)

	_, err := l.Append(context.Background(), Entry{ChangeSet: labelChange("urn:a", "v")})
	if err == nil {
		t.Fatal("Append() without actor should fail")
	}
}

func TestAppend_ConcurrentAppendsAreGapless(t *testing.T) {
	l := createTestLog(t)
	const n = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := l.Append(context.Background(), Entry{
				Timestamp: time.Now(),
				Actor:     "alice",
				ChangeSet: labelChange("urn:a", "v"),
			})
			if err != nil {
				t.Errorf("Append() failed: %v", err)
				return
			}
			mu.Lock()
			seqs = append(seqs, seq)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	if len(seqs) != n {
		t.Fatalf("got %d seqs, want %d", len(seqs), n)
	}
	for i, seq := range seqs {
		if seq != int64(i+1) {
			t.Fatalf("seqs[%d] = %d, want %d (seqs=%v)", i, seq, i+1, seqs)
		}
	}
}

func TestAppend_EntriesAreImmutable(t *testing.T) {
	l := createTestLog(t)
	mustAppend(t, l, "alice", labelChange("urn:a", "v"))

	if _, err := l.db.Exec("UPDATE entries SET actor = 'mallory' WHERE seq = 1"); err == nil {
		t.Error("UPDATE on entries should be rejected")
	}
	if _, err := l.db.Exec("DELETE FROM entries WHERE seq = 1"); err == nil {
		t.Error("DELETE on entries should be rejected")
	}
}

func TestAppend_EmptyChangeSet(t *testing.T) {
	l := createTestLog(t)

	cs := fact.ChangeSet{Remove: fact.NewSet(), Add: fact.NewSet()}
	seq := mustAppend(t, l, "alice", cs)

	got := collect(t, l, seq)
	if len(got) != 1 || !got[0].ChangeSet.IsEmpty() {
		t.Errorf("ReadFrom(%d) = %+v, want one empty entry", seq, got)
	}
}
