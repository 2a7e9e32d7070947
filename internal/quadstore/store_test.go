package quadstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/fact"
)

const g = "urn:graph:metadata"

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func label(subject, value string) fact.Fact {
	return fact.New(g, fact.IRI(subject), fact.RDFSLabel, fact.Literal(value))
}

func typed(subject, class string) fact.Fact {
	return fact.New(g, fact.IRI(subject), fact.RDFType, fact.IRI(class))
}

func addAll(t *testing.T, s *Store, facts ...fact.Fact) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Txn) error {
		for _, f := range facts {
			if err := tx.Add(f); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func find(t *testing.T, s *Store, p fact.Pattern) []fact.Fact {
	t.Helper()
	var out []fact.Fact
	err := s.View(context.Background(), func(tx *Txn) error {
		var err error
		out, err = tx.Find(p)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestAddAndFind(t *testing.T) {
	s := setupTestStore(t)
	a, b, c := label("urn:a", "A"), typed("urn:a", "urn:Collection"), label("urn:b", "B")
	addAll(t, s, a, b, c)

	subjA := fact.IRI("urn:a")
	objColl := fact.IRI("urn:Collection")
	litB := fact.Literal("B")

	tests := []struct {
		name    string
		pattern fact.Pattern
		want    []fact.Fact
	}{
		{"all", fact.Pattern{}, []fact.Fact{a, b, c}},
		{"by subject", fact.Pattern{Subject: &subjA}, []fact.Fact{a, b}},
		{"by predicate", fact.Pattern{Predicate: fact.RDFSLabel}, []fact.Fact{a, c}},
		{"by object", fact.Pattern{Object: &objColl}, []fact.Fact{b}},
		{"by literal object", fact.Pattern{Object: &litB}, []fact.Fact{c}},
		{"subject and predicate", fact.Pattern{Subject: &subjA, Predicate: fact.RDFType}, []fact.Fact{b}},
		{"other graph", fact.Pattern{Graph: "urn:graph:other"}, []fact.Fact{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, find(t, s, tt.pattern))
		})
	}
}

func TestFindIsSorted(t *testing.T) {
	s := setupTestStore(t)
	addAll(t, s, label("urn:c", "C"), label("urn:a", "A"), label("urn:b", "B"))

	got := find(t, s, fact.Pattern{Predicate: fact.RDFSLabel})
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Negative(t, fact.Compare(got[i-1], got[i]))
	}
}

func TestSubjectPrefixIsExact(t *testing.T) {
	s := setupTestStore(t)
	addAll(t, s, label("urn:a", "A"), label("urn:ab", "AB"))

	subj := fact.IRI("urn:a")
	got := find(t, s, fact.Pattern{Subject: &subj})
	assert.Equal(t, []fact.Fact{label("urn:a", "A")}, got)
}

func TestAddIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	f := label("urn:a", "A")
	addAll(t, s, f, f)
	addAll(t, s, f)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddRejectsInvalidFact(t *testing.T) {
	s := setupTestStore(t)
	err := s.Update(context.Background(), func(tx *Txn) error {
		return tx.Add(fact.New(g, fact.Literal("not a subject"), fact.RDFSLabel, fact.Literal("x")))
	})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := setupTestStore(t)
	a, b := label("urn:a", "A"), typed("urn:a", "urn:Collection")
	addAll(t, s, a, b)

	err := s.Update(context.Background(), func(tx *Txn) error {
		if err := tx.Remove(a); err != nil {
			return err
		}
		return tx.Remove(label("urn:absent", "x"))
	})
	require.NoError(t, err)

	assert.Equal(t, []fact.Fact{b}, find(t, s, fact.Pattern{}))
	assert.Empty(t, find(t, s, fact.Pattern{Predicate: fact.RDFSLabel}), "index keys must be removed too")
}

func TestApplyRemovesBeforeAdding(t *testing.T) {
	s := setupTestStore(t)
	f := label("urn:a", "A")
	addAll(t, s, f)

	cs := fact.ChangeSet{Remove: fact.NewSet(f), Add: fact.NewSet(f)}
	err := s.Update(context.Background(), func(tx *Txn) error { return tx.Apply(cs) })
	require.NoError(t, err)

	assert.Equal(t, []fact.Fact{f}, find(t, s, fact.Pattern{}))
}

func TestUpdateDiscardsOnError(t *testing.T) {
	s := setupTestStore(t)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(tx *Txn) error {
		require.NoError(t, tx.Add(label("urn:a", "A")))
		require.NoError(t, tx.SetMeta("k", []byte("v")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	empty, err := s.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)

	err = s.View(context.Background(), func(tx *Txn) error {
		_, ok, err := tx.GetMeta("k")
		assert.False(t, ok)
		return err
	})
	require.NoError(t, err)
}

func TestUpdateSeesOwnWrites(t *testing.T) {
	s := setupTestStore(t)
	f := label("urn:a", "A")

	err := s.Update(context.Background(), func(tx *Txn) error {
		require.NoError(t, tx.Add(f))
		ok, err := tx.Contains(f)
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := tx.Exists(fact.Pattern{Predicate: fact.RDFSLabel})
		require.NoError(t, err)
		assert.True(t, found)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRejectsCancelledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(*Txn) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMeta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Txn) error { return tx.SetMeta("lifecycle/urn:a", []byte(`{"x":1}`)) }))

	require.NoError(t, s.View(ctx, func(tx *Txn) error {
		v, ok, err := tx.GetMeta("lifecycle/urn:a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"x":1}`, string(v))
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx *Txn) error { return tx.DeleteMeta("lifecycle/urn:a") }))

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty, "metadata does not count as facts")
}

func TestReset(t *testing.T) {
	s := setupTestStore(t)
	addAll(t, s, label("urn:a", "A"), label("urn:b", "B"))

	require.NoError(t, s.Reset())

	empty, err := s.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	addAll(t, s, label("urn:a", "A"))
	require.NoError(t, s.Close())

	present, err := DataFilesPresent(dir)
	require.NoError(t, err)
	assert.True(t, present)

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []fact.Fact{label("urn:a", "A")}, find(t, s, fact.Pattern{}))
	assert.Equal(t, dir, s.Path())
}

func TestDataFilesPresent(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		present, err := DataFilesPresent(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("directory without data files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644))
		present, err := DataFilesPresent(dir)
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("directory with a value log", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000001.vlog"), nil, 0o644))
		present, err := DataFilesPresent(dir)
		require.NoError(t, err)
		assert.True(t, present)
	})
}
