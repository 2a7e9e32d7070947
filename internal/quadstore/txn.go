package quadstore

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/metastore/internal/fact"
)

const (
	factPrefix = "f/"
	subjPrefix = "s/"
	predPrefix = "p/"
	objPrefix  = "o/"
	metaPrefix = "m/"

	sep = "\x00"
)

// Txn is a view of the store inside Update or View. It must not be used
// after the callback returns.
type Txn struct {
	txn *badger.Txn
}

func indexKeys(f fact.Fact) [][]byte {
	k := f.Key()
	return [][]byte{
		[]byte(factPrefix + k),
		[]byte(subjPrefix + f.Subject.Key() + sep + k),
		[]byte(predPrefix + f.Predicate + sep + k),
		[]byte(objPrefix + f.Object.Key() + sep + k),
	}
}

// Contains reports whether f is stored.
func (t *Txn) Contains(f fact.Fact) (bool, error) {
	_, err := t.txn.Get([]byte(factPrefix + f.Key()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get fact: %w", err)
	}
	return true, nil
}

// Add stores f. Adding a stored fact is a no-op.
func (t *Txn) Add(f fact.Fact) error {
	if err := f.Validate(); err != nil {
		return err
	}
	ok, err := t.Contains(f)
	if err != nil || ok {
		return err
	}

	value, err := fact.MarshalFact(f)
	if err != nil {
		return err
	}
	for _, key := range indexKeys(f) {
		if err := t.txn.Set(key, value); err != nil {
			return fmt.Errorf("add %s: %w", f, err)
		}
	}
	return nil
}

// Remove deletes f. Removing an absent fact is a no-op.
func (t *Txn) Remove(f fact.Fact) error {
	ok, err := t.Contains(f)
	if err != nil || !ok {
		return err
	}
	for _, key := range indexKeys(f) {
		if err := t.txn.Delete(key); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

// Apply removes cs.Remove and then adds cs.Add.
func (t *Txn) Apply(cs fact.ChangeSet) error {
	for _, f := range cs.Remove.Facts() {
		if err := t.Remove(f); err != nil {
			return err
		}
	}
	for _, f := range cs.Add.Facts() {
		if err := t.Add(f); err != nil {
			return err
		}
	}
	return nil
}

// scanPrefix picks the narrowest key range for p.
func scanPrefix(p fact.Pattern) []byte {
	switch {
	case p.Subject != nil:
		return []byte(subjPrefix + p.Subject.Key() + sep)
	case p.Object != nil:
		return []byte(objPrefix + p.Object.Key() + sep)
	case p.Predicate != "":
		return []byte(predPrefix + p.Predicate + sep)
	default:
		return []byte(factPrefix)
	}
}

// Scan calls fn for each fact matching p, in key order of the chosen index.
// Scanning stops at the first error fn returns, and Scan returns it.
func (t *Txn) Scan(p fact.Pattern, fn func(fact.Fact) error) error {
	prefix := scanPrefix(p)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var f fact.Fact
		err := it.Item().Value(func(v []byte) error {
			var err error
			f, err = fact.UnmarshalFact(v)
			return err
		})
		if err != nil {
			return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
		}
		if !p.Matches(f) {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Find returns every fact matching p in canonical order.
func (t *Txn) Find(p fact.Pattern) ([]fact.Fact, error) {
	out := []fact.Fact{}
	err := t.Scan(p, func(f fact.Fact) error {
		out = append(out, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, fact.Compare)
	return out, nil
}

// Exists reports whether any fact matches p.
func (t *Txn) Exists(p fact.Pattern) (bool, error) {
	found := false
	err := t.Scan(p, func(fact.Fact) error {
		found = true
		return errStopScan
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return false, err
	}
	return found, nil
}

var errStopScan = errors.New("stop scan")

// GetMeta returns the metadata value stored under key.
func (t *Txn) GetMeta(key string) ([]byte, bool, error) {
	item, err := t.txn.Get([]byte(metaPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get meta %q: %w", key, err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("read meta %q: %w", key, err)
	}
	return v, true, nil
}

// SetMeta stores a metadata value.
func (t *Txn) SetMeta(key string, value []byte) error {
	if err := t.txn.Set([]byte(metaPrefix+key), value); err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// DeleteMeta removes a metadata value. Deleting an absent key is a no-op.
func (t *Txn) DeleteMeta(key string) error {
	if err := t.txn.Delete([]byte(metaPrefix + key)); err != nil {
		return fmt.Errorf("delete meta %q: %w", key, err)
	}
	return nil
}
