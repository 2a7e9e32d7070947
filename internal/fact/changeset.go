package fact

import "slices"

// ChangeSet is one proposed mutation: facts to remove and facts to add.
type ChangeSet struct {
	Remove Set
	Add    Set
}

// NewChangeSet copies remove and add into a fresh change-set.
func NewChangeSet(remove, add Set) ChangeSet {
	return ChangeSet{Remove: remove.Clone(), Add: add.Clone()}
}

// Normalize returns a copy with the facts common to both sides dropped from
// both, and with every added fact whose object is the Nil sentinel stripped.
func (c ChangeSet) Normalize() ChangeSet {
	unchanged := c.Remove.Intersect(c.Add)
	out := ChangeSet{
		Remove: c.Remove.Minus(unchanged),
		Add:    c.Add.Minus(unchanged),
	}
	for k, f := range out.Add {
		if f.Object == NilNode {
			delete(out.Add, k)
		}
	}
	return out
}

// IsEmpty reports whether the change-set changes nothing.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Remove) == 0 && len(c.Add) == 0
}

// Inverse returns the change-set that undoes c.
func (c ChangeSet) Inverse() ChangeSet {
	return ChangeSet{Remove: c.Add.Clone(), Add: c.Remove.Clone()}
}

// Subjects returns every subject touched by either side.
func (c ChangeSet) Subjects() []Node {
	seen := make(map[string]Node)
	for _, f := range c.Remove {
		seen[f.Subject.Key()] = f.Subject
	}
	for _, f := range c.Add {
		seen[f.Subject.Key()] = f.Subject
	}
	return sortedNodes(seen)
}

// Graphs returns the graph IRIs touched by either side, sorted.
func (c ChangeSet) Graphs() []string {
	seen := make(map[string]struct{})
	for _, f := range c.Remove {
		seen[f.Graph] = struct{}{}
	}
	for _, f := range c.Add {
		seen[f.Graph] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Partition splits the change-set by graph.
func (c ChangeSet) Partition() map[string]ChangeSet {
	out := make(map[string]ChangeSet)
	for _, g := range c.Graphs() {
		out[g] = ChangeSet{Remove: make(Set), Add: make(Set)}
	}
	for k, f := range c.Remove {
		out[f.Graph].Remove[k] = f
	}
	for k, f := range c.Add {
		out[f.Graph].Add[k] = f
	}
	return out
}
