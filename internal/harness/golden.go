package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/metastore/internal/fact"
)

// TraceSnapshot captures everything observable about a scenario run except
// timestamps. It serializes to canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Trace        []TraceEvent  `json:"trace"`
	Events       []EventRecord `json:"events"`
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Empty optional fields are left out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, t := range s.Trace {
		m := map[string]any{
			"step":    t.Step,
			"op":      t.Op,
			"actor":   t.Actor,
			"outcome": t.Outcome,
		}
		if t.Seq > 0 {
			m["seq"] = t.Seq
		}
		if len(t.Removed) > 0 {
			m["removed"] = anySlice(t.Removed)
		}
		if len(t.Added) > 0 {
			m["added"] = anySlice(t.Added)
		}
		if len(t.Violations) > 0 {
			m["violations"] = anySlice(t.Violations)
		}
		if t.Err != "" {
			m["error"] = t.Err
		}
		trace[i] = m
	}

	evs := make([]any, len(s.Events))
	for i, ev := range s.Events {
		m := map[string]any{
			"id":       ev.ID,
			"category": ev.Category,
			"type":     ev.Type,
		}
		optional := map[string]string{
			"actor":     ev.Actor,
			"subject":   ev.Subject,
			"resource":  ev.Resource,
			"level":     ev.Level,
			"old_level": ev.OldLevel,
		}
		for k, v := range optional {
			if v != "" {
				m[k] = v
			}
		}
		if ev.Seq > 0 {
			m["seq"] = ev.Seq
		}
		evs[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"events":        evs,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return fact.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Events:       result.Events,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
