package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/metastore/internal/authz"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.Type, e.Expected, e.Actual)
}

// evaluate checks one assertion against the final state and the recorded
// events. A nil return means the assertion held.
func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertFactsEqual:
		return h.assertFactsEqual(ctx, a)
	case AssertFactCount:
		return h.assertFactCount(ctx, a)
	case AssertPermission:
		return h.assertPermission(ctx, a)
	case AssertEvent:
		return assertEvent(result.Events, *a.Event)
	case AssertLogLength:
		return h.assertLogLength(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) find(ctx context.Context, spec *FactSpec) ([]string, error) {
	p, err := spec.Pattern()
	if err != nil {
		return nil, err
	}
	got, err := h.app.Engine.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(got))
	for i, f := range got {
		out[i] = f.Key()
	}
	return out, nil
}

func (h *Harness) assertFactsEqual(ctx context.Context, a Assertion) error {
	got, err := h.find(ctx, a.Pattern)
	if err != nil {
		return err
	}
	facts, err := toFacts(a.Facts)
	if err != nil {
		return err
	}
	want := make([]string, len(facts))
	for i, f := range facts {
		if f.Graph == "" {
			f.Graph = h.app.Engine.MetadataGraph()
		}
		want[i] = f.Key()
	}
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return &AssertionError{Type: a.Type, Expected: factList(want), Actual: factList(got)}
	}
	return nil
}

func (h *Harness) assertFactCount(ctx context.Context, a Assertion) error {
	got, err := h.find(ctx, a.Pattern)
	if err != nil {
		return err
	}
	if len(got) != *a.Count {
		return &AssertionError{Type: a.Type, Expected: *a.Count, Actual: len(got)}
	}
	return nil
}

func (h *Harness) assertPermission(ctx context.Context, a Assertion) error {
	want, err := authz.ParseLevel(a.Level)
	if err != nil {
		return err
	}
	perm, err := h.app.Engine.GetPermission(ctx, a.Actor, Expand(a.Resource))
	if err != nil {
		return err
	}
	if perm.Level != want {
		return &AssertionError{Type: a.Type, Expected: want, Actual: perm.Level}
	}
	return nil
}

func (h *Harness) assertLogLength(ctx context.Context, a Assertion) error {
	head, err := h.app.Log.LastSeq(ctx)
	if err != nil {
		return err
	}
	if head != int64(*a.Count) {
		return &AssertionError{Type: a.Type, Expected: *a.Count, Actual: head}
	}
	return nil
}

func assertEvent(recorded []EventRecord, m EventMatch) error {
	for _, ev := range recorded {
		if m.matches(ev) {
			return nil
		}
	}
	return &AssertionError{Type: AssertEvent, Expected: m, Actual: fmt.Sprintf("%d non-matching event(s)", len(recorded))}
}

func (m EventMatch) matches(ev EventRecord) bool {
	field := func(want, got string) bool { return want == "" || want == got }
	return field(m.Category, ev.Category) &&
		field(m.Type, ev.Type) &&
		field(m.Actor, ev.Actor) &&
		field(m.Subject, ev.Subject) &&
		field(Expand(m.Resource), ev.Resource) &&
		field(m.Level, ev.Level) &&
		field(m.OldLevel, ev.OldLevel)
}

type factList []string

func (l factList) String() string {
	if len(l) == 0 {
		return "(no facts)"
	}
	return "[" + strings.Join(l, ", ") + "]"
}
