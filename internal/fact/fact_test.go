package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const g = "urn:graph:metadata"

func TestNodeKey(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"iri", IRI("http://example.org/a"), "<http://example.org/a>"},
		{"blank", Blank("b0"), "_:b0"},
		{"plain literal", Literal("hi"), `"hi"`},
		{"quoted literal", Literal(`say "hi"`), `"say \"hi\""`},
		{"language literal", LangLiteral("hallo", "de"), `"hallo"@de`},
		{"typed literal", TypedLiteral("1", "urn:int"), `"1"^^<urn:int>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Key())
		})
	}
}

func TestTypedLiteralFoldsXSDString(t *testing.T) {
	assert.Equal(t, Literal("x"), TypedLiteral("x", XSDString))
}

func TestNodeValidate(t *testing.T) {
	assert.NoError(t, IRI("urn:a").Validate())
	assert.NoError(t, Literal("").Validate())
	assert.Error(t, IRI("").Validate())
	assert.Error(t, Node{}.Validate())
	assert.Error(t, Node{Kind: KindLiteral, Value: "x", Datatype: "urn:d", Lang: "en"}.Validate())
}

func TestNodeValidateRejectsAmbiguousTerms(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"iri with angle bracket", IRI("urn:o> <urn:g1")},
		{"iri with space", IRI("urn:a b")},
		{"iri with tab", IRI("urn:a\tb")},
		{"iri with quote", IRI(`urn:"a"`)},
		{"iri with brace", IRI("urn:{a}")},
		{"iri with backslash", IRI(`urn:a\b`)},
		{"iri with control", IRI("urn:a\x00")},
		{"blank with space", Blank("b0 <urn:x>")},
		{"datatype with bracket", TypedLiteral("1", "urn:int> <urn:g")},
		{"lang with space", LangLiteral("hallo", "de <urn:g>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.node.Validate())
		})
	}

	assert.NoError(t, IRI("https://example.org/a?q=1#frag").Validate())
	assert.NoError(t, IRI("urn:caf\u00e9").Validate())
	assert.NoError(t, LangLiteral("hi", "en-GB").Validate())
	assert.NoError(t, Literal("urn:o> <urn:g1").Validate(), "literals are quoted in keys")
}

func TestFactValidate(t *testing.T) {
	assert.NoError(t, New(g, IRI("urn:s"), "urn:p", Literal("o")).Validate())
	assert.Error(t, New("", IRI("urn:s"), "urn:p", Literal("o")).Validate())
	assert.Error(t, New(g, Literal("s"), "urn:p", Literal("o")).Validate())
	assert.Error(t, New(g, IRI("urn:s"), "", Literal("o")).Validate())
	assert.Error(t, New("urn:g1> <"+g, IRI("urn:s"), "urn:p", IRI("urn:o")).Validate())
	assert.Error(t, New(g, IRI("urn:s"), "urn:p q", Literal("o")).Validate())
}

func TestSetIdentityIsByValue(t *testing.T) {
	s := NewSet(
		New(g, IRI("urn:s"), "urn:p", Literal("e\u0301")),
		New(g, IRI("urn:s"), "urn:p", Literal("\u00e9")),
	)
	assert.Equal(t, 1, s.Len(), "NFC-equivalent literals are one fact")

	s.Add(New("urn:other", IRI("urn:s"), "urn:p", Literal("\u00e9")))
	assert.Equal(t, 2, s.Len(), "the graph is part of the identity")
}

func TestSetFactsAreSorted(t *testing.T) {
	s := NewSet(
		New(g, IRI("urn:c"), "urn:p", Literal("1")),
		New(g, IRI("urn:a"), "urn:p", Literal("1")),
		New(g, IRI("urn:b"), "urn:p", Literal("1")),
	)
	facts := s.Facts()
	require.Len(t, facts, 3)
	assert.Equal(t, "urn:a", facts[0].Subject.Value)
	assert.Equal(t, "urn:b", facts[1].Subject.Value)
	assert.Equal(t, "urn:c", facts[2].Subject.Value)
}

func TestChangeSetNormalize(t *testing.T) {
	a := New(g, IRI("urn:s"), "urn:p", Literal("a"))
	b := New(g, IRI("urn:s"), "urn:p", Literal("b"))
	c := New(g, IRI("urn:s"), "urn:p", Literal("c"))
	cleared := New(g, IRI("urn:s"), "urn:q", NilNode)

	cs := ChangeSet{Remove: NewSet(a, b), Add: NewSet(b, c, cleared)}.Normalize()

	assert.Equal(t, []Fact{a}, cs.Remove.Facts())
	assert.Equal(t, []Fact{c}, cs.Add.Facts())
}

func TestChangeSetNormalizeSameSetsIsEmpty(t *testing.T) {
	s := NewSet(
		New(g, IRI("urn:s"), "urn:p", Literal("a")),
		New(g, IRI("urn:t"), "urn:p", IRI("urn:s")),
	)
	cs := ChangeSet{Remove: s, Add: s.Clone()}.Normalize()
	assert.True(t, cs.IsEmpty())
}

func TestChangeSetNormalizeDoesNotMutateInput(t *testing.T) {
	a := New(g, IRI("urn:s"), "urn:p", Literal("a"))
	in := ChangeSet{Remove: NewSet(a), Add: NewSet(a)}
	_ = in.Normalize()
	assert.True(t, in.Remove.Contains(a))
	assert.True(t, in.Add.Contains(a))
}

func TestChangeSetPartition(t *testing.T) {
	m := New(g, IRI("urn:s"), "urn:p", Literal("a"))
	v := New("urn:graph:vocabulary", IRI("urn:p"), RDFSLabel, Literal("P"))

	parts := ChangeSet{Remove: NewSet(v), Add: NewSet(m)}.Partition()
	require.Len(t, parts, 2)
	assert.True(t, parts[g].Add.Contains(m))
	assert.Equal(t, 0, parts[g].Remove.Len())
	assert.True(t, parts["urn:graph:vocabulary"].Remove.Contains(v))
}

func TestChangeSetSubjectsAndInverse(t *testing.T) {
	a := New(g, IRI("urn:b"), "urn:p", Literal("a"))
	b := New(g, IRI("urn:a"), "urn:p", Literal("b"))
	cs := ChangeSet{Remove: NewSet(a), Add: NewSet(b)}

	assert.Equal(t, []Node{IRI("urn:a"), IRI("urn:b")}, cs.Subjects())

	inv := cs.Inverse()
	assert.True(t, inv.Remove.Contains(b))
	assert.True(t, inv.Add.Contains(a))
}

func TestPatternMatches(t *testing.T) {
	f := New(g, IRI("urn:s"), "urn:p", Literal("o"))
	s := IRI("urn:s")
	other := IRI("urn:x")
	o := Literal("o")

	assert.True(t, Pattern{}.Matches(f))
	assert.True(t, Pattern{Subject: &s, Predicate: "urn:p", Object: &o}.Matches(f))
	assert.True(t, Pattern{Graph: g}.Matches(f))
	assert.False(t, Pattern{Subject: &other}.Matches(f))
	assert.False(t, Pattern{Predicate: "urn:q"}.Matches(f))
	assert.False(t, Pattern{Graph: "urn:graph:vocabulary"}.Matches(f))
}
