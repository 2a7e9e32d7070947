package fact

import (
	"encoding/json"
	"fmt"
)

// wireNode is the JSON form of a Node.
type wireNode struct {
	T    string `json:"t"`
	V    string `json:"v"`
	DT   string `json:"dt,omitempty"`
	Lang string `json:"lang,omitempty"`
}

func (n Node) canonical() map[string]any {
	m := map[string]any{"t": n.Kind.String(), "v": n.Value}
	if n.Datatype != "" {
		m["dt"] = n.Datatype
	}
	if n.Lang != "" {
		m["lang"] = n.Lang
	}
	return m
}

func (f Fact) canonical() map[string]any {
	return map[string]any{
		"g": f.Graph,
		"s": f.Subject.canonical(),
		"p": f.Predicate,
		"o": f.Object.canonical(),
	}
}

func (s Set) canonical() []any {
	facts := s.Facts()
	out := make([]any, len(facts))
	for i, f := range facts {
		out[i] = f.canonical()
	}
	return out
}

func (c ChangeSet) canonical() map[string]any {
	return map[string]any{
		"remove": c.Remove.canonical(),
		"add":    c.Add.canonical(),
	}
}

// MarshalJSON encodes the node in its wire form.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireNode{T: n.Kind.String(), V: n.Value, DT: n.Datatype, Lang: n.Lang})
}

// UnmarshalJSON decodes the wire form.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseKind(w.T)
	if err != nil {
		return err
	}
	*n = Node{Kind: kind, Value: w.V, Datatype: w.DT, Lang: w.Lang}
	return n.Validate()
}

// MarshalJSON encodes the fact in its wire form.
func (f Fact) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(f.canonical())
}

// UnmarshalJSON decodes the wire form.
func (f *Fact) UnmarshalJSON(data []byte) error {
	var w struct {
		G string `json:"g"`
		S Node   `json:"s"`
		P string `json:"p"`
		O Node   `json:"o"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*f = Fact{Graph: w.G, Subject: w.S, Predicate: w.P, Object: w.O}
	return nil
}

// MarshalChangeSet returns the canonical JSON encoding of a change-set. Both
// sides are sorted by fact key, so equal change-sets encode identically.
func MarshalChangeSet(c ChangeSet) ([]byte, error) {
	data, err := MarshalCanonical(c.canonical())
	if err != nil {
		return nil, fmt.Errorf("marshal change set: %w", err)
	}
	return data, nil
}

// UnmarshalChangeSet decodes a change-set written by MarshalChangeSet.
func UnmarshalChangeSet(data []byte) (ChangeSet, error) {
	var w struct {
		Remove []Fact `json:"remove"`
		Add    []Fact `json:"add"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return ChangeSet{}, fmt.Errorf("unmarshal change set: %w", err)
	}
	return ChangeSet{Remove: NewSet(w.Remove...), Add: NewSet(w.Add...)}, nil
}

// MarshalFact returns the canonical JSON encoding of one fact.
func MarshalFact(f Fact) ([]byte, error) {
	return MarshalCanonical(f.canonical())
}

// UnmarshalFact decodes a fact written by MarshalFact.
func UnmarshalFact(data []byte) (Fact, error) {
	var f Fact
	if err := json.Unmarshal(data, &f); err != nil {
		return Fact{}, fmt.Errorf("unmarshal fact: %w", err)
	}
	return f, nil
}
