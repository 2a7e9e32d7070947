package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metastore/internal/fact"
)

// funcValidator adapts a function to Validator.
type funcValidator struct {
	name string
	fn   func(req Request, report func(Violation)) error
}

func (v funcValidator) Name() string { return v.name }

func (v funcValidator) Validate(_ context.Context, req Request, report func(Violation)) error {
	return v.fn(req, report)
}

func reporting(name, msg string) funcValidator {
	return funcValidator{name: name, fn: func(req Request, report func(Violation)) error {
		for _, f := range req.Add.Facts() {
			report(violationFor(f, msg))
		}
		return nil
	}}
}

func TestChainDoesNotShortCircuit(t *testing.T) {
	chain := Chain{reporting("first", "b problem"), reporting("second", "a problem")}
	f := meta("urn:s", fact.RDFSLabel, fact.Literal("x"))

	vs, err := Collect(context.Background(), chain, request("alice", metaGraph, newReader(), nil, []fact.Fact{f}))
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "a problem", vs[0].Message)
	assert.Equal(t, "b problem", vs[1].Message)
}

func TestChainStopsOnInfrastructureError(t *testing.T) {
	ran := false
	chain := Chain{
		funcValidator{name: "broken", fn: func(Request, func(Violation)) error { return errors.New("boom") }},
		funcValidator{name: "after", fn: func(Request, func(Violation)) error { ran = true; return nil }},
	}

	_, err := Collect(context.Background(), chain, request("alice", metaGraph, newReader(), nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.False(t, ran)
}

func TestChainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, Chain{reporting("r", "m")}, request("alice", metaGraph, newReader(), nil, nil))
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidationError(t *testing.T) {
	obj := fact.Literal("v")
	err := error(&ValidationError{Violations: []Violation{{
		Message:   "bad",
		Subject:   fact.IRI("urn:s"),
		Predicate: "urn:p",
		Object:    &obj,
	}}})

	wrapped := errors.Join(errors.New("commit"), err)
	assert.True(t, IsValidationError(wrapped))
	assert.Len(t, Violations(wrapped), 1)
	assert.Contains(t, err.Error(), "VALIDATION_FAILED: 1 violation(s): bad (subject <urn:s>, predicate <urn:p>, object \"v\")")
	assert.False(t, IsValidationError(errors.New("other")))
	assert.Nil(t, Violations(errors.New("other")))
}

func TestPipelineUnionsGraphs(t *testing.T) {
	p := NewPipeline()
	p.Register(metaGraph, reporting("meta", "metadata rule"))
	p.Register(vocabGraph, reporting("vocab", "vocabulary rule"))

	cs := fact.NewChangeSet(nil, fact.NewSet(
		meta("urn:a", fact.RDFSLabel, fact.Literal("a")),
		vocab("urn:b", fact.RDFSLabel, fact.Literal("b")),
	))

	err := p.Validate(context.Background(), "alice", cs, newReader())
	require.True(t, IsValidationError(err))
	vs := Violations(err)
	require.Len(t, vs, 2)
	assert.Equal(t, "metadata rule", vs[0].Message)
	assert.Equal(t, "vocabulary rule", vs[1].Message)
}

func TestPipelineFallback(t *testing.T) {
	p := NewPipeline()
	p.Register(metaGraph, reporting("meta", "metadata rule"))
	p.RegisterFallback(reporting("other", "other rule"))

	cs := fact.NewChangeSet(nil, fact.NewSet(fact.New("urn:graph:x", fact.IRI("urn:a"), fact.RDFSLabel, fact.Literal("a"))))
	err := p.Validate(context.Background(), "alice", cs, newReader())
	require.True(t, IsValidationError(err))
	assert.Equal(t, "other rule", Violations(err)[0].Message)
}

func TestPipelineApproves(t *testing.T) {
	p := NewPipeline()
	p.Register(metaGraph, Chain{})

	cs := fact.NewChangeSet(nil, fact.NewSet(meta("urn:a", fact.RDFSLabel, fact.Literal("a"))))
	assert.NoError(t, p.Validate(context.Background(), "alice", cs, newReader()))
}
