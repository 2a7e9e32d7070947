package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

const keyPrefix = "lifecycle/"

// Record is the creation and modification bookkeeping of one entity.
type Record struct {
	Creator  string    `json:"creator"`
	Created  time.Time `json:"created"`
	Modifier string    `json:"modifier"`
	Modified time.Time `json:"modified"`
}

// MetaStore reads and writes store metadata. *quadstore.Txn satisfies it.
type MetaStore interface {
	GetMeta(key string) ([]byte, bool, error)
	SetMeta(key string, value []byte) error
	DeleteMeta(key string) error
}

// Key returns the metadata key of the record for iri.
func Key(iri string) string { return keyPrefix + iri }

// Get returns the record for iri.
func Get(tx MetaStore, iri string) (Record, bool, error) {
	raw, ok, err := tx.GetMeta(Key(iri))
	if err != nil || !ok {
		return Record{}, false, err
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, false, fmt.Errorf("decode lifecycle record for %s: %w", iri, err)
	}
	return r, true, nil
}

func put(tx MetaStore, iri string, r Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode lifecycle record for %s: %w", iri, err)
	}
	return tx.SetMeta(Key(iri), raw)
}

// Snapshot holds the records a Touch replaced. A nil entry means the entity
// had no record.
type Snapshot map[string]*Record

// Touch stamps every IRI subject of cs as modified by actor at at, creating
// records for entities seen for the first time. Records are never removed
// by Touch, even when every fact about the entity is removed.
func Touch(tx MetaStore, cs fact.ChangeSet, actor string, at time.Time) (Snapshot, error) {
	at = at.UTC()
	snap := make(Snapshot)
	for _, subject := range cs.Subjects() {
		if !subject.IsIRI() {
			continue
		}
		prev, ok, err := Get(tx, subject.Value)
		if err != nil {
			return nil, err
		}
		next := Record{Creator: actor, Created: at, Modifier: actor, Modified: at}
		if ok {
			snap[subject.Value] = &prev
			next.Creator, next.Created = prev.Creator, prev.Created
		} else {
			snap[subject.Value] = nil
		}
		if err := put(tx, subject.Value, next); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Restore puts back the records a Touch replaced.
func Restore(tx MetaStore, snap Snapshot) error {
	for iri, prev := range snap {
		if prev == nil {
			if err := tx.DeleteMeta(Key(iri)); err != nil {
				return err
			}
			continue
		}
		if err := put(tx, iri, *prev); err != nil {
			return err
		}
	}
	return nil
}
