package lifecycle

import (
	"fmt"

	"github.com/roach88/metastore/internal/fact"
)

// Reader is the view of the store used for inverse lookups.
type Reader interface {
	Find(p fact.Pattern) ([]fact.Fact, error)
}

// Inverses maps a predicate to its inverse. It is always symmetric.
type Inverses map[string]string

// NewInverses builds a symmetric inverse table from configured pairs.
func NewInverses(pairs map[string]string) (Inverses, error) {
	inv := make(Inverses, 2*len(pairs))
	for p, q := range pairs {
		if p == "" || q == "" {
			return nil, fmt.Errorf("inverse pair %q -> %q: predicates must not be empty", p, q)
		}
		for _, pair := range [][2]string{{p, q}, {q, p}} {
			if existing, ok := inv[pair[0]]; ok && existing != pair[1] {
				return nil, fmt.Errorf("predicate %s has conflicting inverses %s and %s", pair[0], existing, pair[1])
			}
			inv[pair[0]] = pair[1]
		}
	}
	return inv, nil
}

type lookup struct {
	inverse string
	found   bool
}

// InverseCache answers inverse lookups for one commit. Both hits and misses
// are cached. It is not safe for concurrent use.
type InverseCache struct {
	static          Inverses
	vocabularyGraph string
	store           Reader
	memo            map[string]lookup
}

// NewInverseCache returns an empty cache reading declarations from the
// vocabulary graph of store.
func NewInverseCache(static Inverses, vocabularyGraph string, store Reader) *InverseCache {
	return &InverseCache{
		static:          static,
		vocabularyGraph: vocabularyGraph,
		store:           store,
		memo:            make(map[string]lookup),
	}
}

// Inverse returns the inverse of predicate, if one is registered.
func (c *InverseCache) Inverse(predicate string) (string, bool, error) {
	if l, ok := c.memo[predicate]; ok {
		return l.inverse, l.found, nil
	}
	l, err := c.resolve(predicate)
	if err != nil {
		return "", false, err
	}
	c.memo[predicate] = l
	return l.inverse, l.found, nil
}

// Len returns the number of cached lookups.
func (c *InverseCache) Len() int { return len(c.memo) }

func (c *InverseCache) resolve(predicate string) (lookup, error) {
	if q, ok := c.static[predicate]; ok {
		return lookup{inverse: q, found: true}, nil
	}
	if c.store == nil || c.vocabularyGraph == "" {
		return lookup{}, nil
	}

	p := fact.IRI(predicate)
	forward, err := c.store.Find(fact.Pattern{Graph: c.vocabularyGraph, Subject: &p, Predicate: fact.OWLInverseOf})
	if err != nil {
		return lookup{}, fmt.Errorf("inverse of %s: %w", predicate, err)
	}
	for _, f := range forward {
		if f.Object.IsIRI() {
			return lookup{inverse: f.Object.Value, found: true}, nil
		}
	}

	backward, err := c.store.Find(fact.Pattern{Graph: c.vocabularyGraph, Predicate: fact.OWLInverseOf, Object: &p})
	if err != nil {
		return lookup{}, fmt.Errorf("inverse of %s: %w", predicate, err)
	}
	for _, f := range backward {
		if f.Subject.IsIRI() {
			return lookup{inverse: f.Subject.Value, found: true}, nil
		}
	}
	return lookup{}, nil
}

// Infer returns cs extended with the inverse counterpart of every
// resource-valued fact on both sides.
func Infer(cs fact.ChangeSet, cache *InverseCache) (fact.ChangeSet, error) {
	remove, err := inferSet(cs.Remove, cache)
	if err != nil {
		return fact.ChangeSet{}, err
	}
	add, err := inferSet(cs.Add, cache)
	if err != nil {
		return fact.ChangeSet{}, err
	}
	return fact.ChangeSet{Remove: remove, Add: add}, nil
}

func inferSet(in fact.Set, cache *InverseCache) (fact.Set, error) {
	out := in.Clone()
	for _, f := range in.Facts() {
		if !f.Object.IsResource() {
			continue
		}
		q, ok, err := cache.Inverse(f.Predicate)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Add(fact.New(f.Graph, f.Object, q, f.Subject))
		}
	}
	return out, nil
}
