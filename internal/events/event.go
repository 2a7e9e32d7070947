// Package events hands committed changes and permission changes to
// downstream consumers such as mail and audit. Delivery ends at the outbound
// channel; what consumers do with an event is their concern.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
)

// Category groups events for consumers.
type Category string

const (
	CategoryMetadata   Category = "METADATA"
	CategoryVocabulary Category = "VOCABULARY"
	CategoryPermission Category = "PERMISSION"
)

// Type is what happened.
type Type string

const (
	TypeCommitted          Type = "COMMITTED"
	TypePermissionAdded    Type = "PERMISSION_ADDED"
	TypePermissionModified Type = "PERMISSION_MODIFIED"
	TypePermissionDeleted  Type = "PERMISSION_DELETED"
)

// Event is one outbound message.
type Event struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Type      Type      `json:"type"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Seq and ChangeSet are set for commit events.
	Seq       int64           `json:"seq,omitempty"`
	ChangeSet *fact.ChangeSet `json:"change_set,omitempty"`

	// Permission is set for permission events. OldLevel is set when a grant
	// was modified.
	Permission              *authz.Permission `json:"permission,omitempty"`
	OldLevel                *authz.Level      `json:"old_level,omitempty"`
	CreateCollectionAllowed bool              `json:"create_collection_allowed,omitempty"`
}

// IDGenerator produces event IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 event IDs.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CommitEvents splits a committed change into one event per category:
// changes to the vocabulary graph are VOCABULARY, everything else METADATA.
func CommitEvents(seq int64, actor string, at time.Time, cs fact.ChangeSet, vocabularyGraph string) []Event {
	vocab := fact.ChangeSet{Remove: fact.NewSet(), Add: fact.NewSet()}
	meta := fact.ChangeSet{Remove: fact.NewSet(), Add: fact.NewSet()}
	split := func(in fact.Set, v, m fact.Set) {
		for _, f := range in {
			if f.Graph == vocabularyGraph {
				v.Add(f)
			} else {
				m.Add(f)
			}
		}
	}
	split(cs.Remove, vocab.Remove, meta.Remove)
	split(cs.Add, vocab.Add, meta.Add)

	var out []Event
	for _, part := range []struct {
		category Category
		cs       fact.ChangeSet
	}{{CategoryMetadata, meta}, {CategoryVocabulary, vocab}} {
		if part.cs.IsEmpty() {
			continue
		}
		cs := part.cs
		out = append(out, Event{
			Category:  part.category,
			Type:      TypeCommitted,
			Actor:     actor,
			Timestamp: at,
			Seq:       seq,
			ChangeSet: &cs,
		})
	}
	return out
}
