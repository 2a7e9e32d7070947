package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/fact"
)

func TestParseFactsObjectForms(t *testing.T) {
	facts, err := ParseFacts([]byte(`
- subject: urn:a
  predicate: urn:p
  object: plain
- subject: _:b1
  predicate: urn:p
  object: {iri: urn:o}
- graph: urn:g
  subject: urn:a
  predicate: urn:p
  object: {literal: "42", datatype: "http://www.w3.org/2001/XMLSchema#integer"}
- subject: urn:a
  predicate: urn:p
  object: {literal: Hallo, lang: de}
- subject: urn:a
  predicate: urn:p
  object: {blank: b2}
- subject: urn:a
  predicate: urn:p
  object: {nil: true}
`))
	require.NoError(t, err)
	require.Len(t, facts, 6)

	assert.Equal(t, fact.New("", fact.IRI("urn:a"), "urn:p", fact.Literal("plain")), facts[0])
	assert.Equal(t, fact.Blank("b1"), facts[1].Subject)
	assert.Equal(t, fact.IRI("urn:o"), facts[1].Object)
	assert.Equal(t, "urn:g", facts[2].Graph)
	assert.Equal(t, fact.TypedLiteral("42", "http://www.w3.org/2001/XMLSchema#integer"), facts[2].Object)
	assert.Equal(t, fact.LangLiteral("Hallo", "de"), facts[3].Object)
	assert.Equal(t, fact.Blank("b2"), facts[4].Object)
	assert.Equal(t, fact.NilNode, facts[5].Object)
}

func TestParseFactsAcceptsJSON(t *testing.T) {
	facts, err := ParseFacts([]byte(`[{"subject": "urn:a", "predicate": "urn:p", "object": {"iri": "urn:o"}}]`))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, fact.IRI("urn:o"), facts[0].Object)
}

func TestParseFactsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "fact file is empty"},
		{"unknown field", "- subject: urn:a\n  predicat: urn:p\n  object: x\n", "predicat"},
		{"two object kinds", "- subject: urn:a\n  predicate: urn:p\n  object: {iri: urn:o, literal: x}\n", "exactly one of"},
		{"no object kind", "- subject: urn:a\n  predicate: urn:p\n  object: {lang: en}\n", "exactly one of"},
		{"missing predicate", "- subject: urn:a\n  object: x\n", "fact 1: subject, predicate and object are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFacts([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
