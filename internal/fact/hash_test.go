package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryHashDeterminism(t *testing.T) {
	cs := ChangeSet{
		Remove: NewSet(),
		Add:    NewSet(New("urn:g", IRI("urn:s"), RDFSLabel, Literal("x"))),
	}

	h1, err := EntryHash(1, 1000, "alice", cs)
	require.NoError(t, err)
	h2, err := EntryHash(1, 1000, "alice", cs.Normalize())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "EntryHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestEntryHashChangesWithInput(t *testing.T) {
	cs := ChangeSet{Remove: NewSet(), Add: NewSet(New("urn:g", IRI("urn:s"), RDFSLabel, Literal("x")))}
	other := ChangeSet{Remove: NewSet(), Add: NewSet(New("urn:g", IRI("urn:s"), RDFSLabel, Literal("y")))}

	base, err := EntryHash(1, 1000, "alice", cs)
	require.NoError(t, err)

	for name, args := range map[string]struct {
		seq   int64
		at    int64
		actor string
		cs    ChangeSet
	}{
		"seq":        {2, 1000, "alice", cs},
		"timestamp":  {1, 1001, "alice", cs},
		"actor":      {1, 1000, "bob", cs},
		"change set": {1, 1000, "alice", other},
	} {
		h, err := EntryHash(args.seq, args.at, args.actor, args.cs)
		require.NoError(t, err)
		assert.NotEqual(t, base, h, "different %s should produce a different hash", name)
	}
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain("metastore/a/v1", data), hashWithDomain("metastore/b/v1", data))
}
