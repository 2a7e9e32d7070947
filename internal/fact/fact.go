package fact

import (
	"fmt"
	"slices"
	"strings"
)

// Fact is one (graph, subject, predicate, object) tuple.
type Fact struct {
	Graph     string
	Subject   Node
	Predicate string
	Object    Node
}

// New builds a fact.
func New(graph string, subject Node, predicate string, object Node) Fact {
	return Fact{Graph: graph, Subject: subject, Predicate: predicate, Object: object}
}

// Key returns the canonical identity of the fact in N-Quads order.
func (f Fact) Key() string {
	var b strings.Builder
	b.WriteString(f.Subject.Key())
	b.WriteString(" <")
	b.WriteString(f.Predicate)
	b.WriteString("> ")
	b.WriteString(f.Object.Key())
	b.WriteString(" <")
	b.WriteString(f.Graph)
	b.WriteString(">")
	return b.String()
}

// String implements fmt.Stringer.
func (f Fact) String() string {
	return f.Key() + " ."
}

// Validate checks that every component is present and well formed.
func (f Fact) Validate() error {
	if f.Graph == "" {
		return fmt.Errorf("fact %s: graph is required", f.Key())
	}
	if err := ValidateIRI(f.Graph); err != nil {
		return fmt.Errorf("fact graph: %w", err)
	}
	if !f.Subject.IsResource() {
		return fmt.Errorf("fact %s: subject must be an IRI or blank node", f.Key())
	}
	if err := f.Subject.Validate(); err != nil {
		return fmt.Errorf("fact subject: %w", err)
	}
	if f.Predicate == "" {
		return fmt.Errorf("fact %s: predicate is required", f.Key())
	}
	if err := ValidateIRI(f.Predicate); err != nil {
		return fmt.Errorf("fact predicate: %w", err)
	}
	if err := f.Object.Validate(); err != nil {
		return fmt.Errorf("fact object: %w", err)
	}
	return nil
}

// Compare orders facts by canonical key.
func Compare(a, b Fact) int {
	return strings.Compare(a.Key(), b.Key())
}

// Pattern selects facts. Empty or nil components are wildcards.
type Pattern struct {
	Graph     string
	Subject   *Node
	Predicate string
	Object    *Node
}

// Matches reports whether f satisfies every bound component.
func (p Pattern) Matches(f Fact) bool {
	if p.Graph != "" && p.Graph != f.Graph {
		return false
	}
	if p.Subject != nil && p.Subject.Key() != f.Subject.Key() {
		return false
	}
	if p.Predicate != "" && p.Predicate != f.Predicate {
		return false
	}
	if p.Object != nil && p.Object.Key() != f.Object.Key() {
		return false
	}
	return true
}

// Set is a set of facts keyed by Fact.Key. Use NewSet; the zero value is
// read-only.
type Set map[string]Fact

// NewSet returns a set holding the given facts.
func NewSet(facts ...Fact) Set {
	s := make(Set, len(facts))
	for _, f := range facts {
		s[f.Key()] = f
	}
	return s
}

func (s Set) Add(f Fact)    { s[f.Key()] = f }
func (s Set) Delete(f Fact) { delete(s, f.Key()) }
func (s Set) Len() int      { return len(s) }

// Contains reports whether f is in the set.
func (s Set) Contains(f Fact) bool {
	_, ok := s[f.Key()]
	return ok
}

// AddAll adds every fact of o to s.
func (s Set) AddAll(o Set) {
	for k, f := range o {
		s[k] = f
	}
}

// Clone returns an independent copy. Cloning a nil set yields an empty set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k, f := range s {
		c[k] = f
	}
	return c
}

// Minus returns the facts of s that are not in o.
func (s Set) Minus(o Set) Set {
	out := make(Set, len(s))
	for k, f := range s {
		if _, ok := o[k]; !ok {
			out[k] = f
		}
	}
	return out
}

// Intersect returns the facts present in both s and o.
func (s Set) Intersect(o Set) Set {
	out := make(Set)
	for k, f := range s {
		if _, ok := o[k]; ok {
			out[k] = f
		}
	}
	return out
}

// Filter returns the facts for which keep returns true.
func (s Set) Filter(keep func(Fact) bool) Set {
	out := make(Set)
	for k, f := range s {
		if keep(f) {
			out[k] = f
		}
	}
	return out
}

// Facts returns the facts in canonical key order.
func (s Set) Facts() []Fact {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Fact, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

// Subjects returns the distinct subjects in canonical order.
func (s Set) Subjects() []Node {
	seen := make(map[string]Node)
	for _, f := range s {
		seen[f.Subject.Key()] = f.Subject
	}
	return sortedNodes(seen)
}

// ByGraph partitions the set by graph IRI.
func (s Set) ByGraph() map[string]Set {
	out := make(map[string]Set)
	for k, f := range s {
		g, ok := out[f.Graph]
		if !ok {
			g = make(Set)
			out[f.Graph] = g
		}
		g[k] = f
	}
	return out
}

func sortedNodes(m map[string]Node) []Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Node, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
