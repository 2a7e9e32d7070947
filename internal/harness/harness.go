package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/metastore/internal/app"
	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/config"
	"github.com/roach88/metastore/internal/engine"
	"github.com/roach88/metastore/internal/events"
	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/testutil"
	"github.com/roach88/metastore/internal/validation"
)

// Harness is the scenario execution engine. It drives one App opened with
// a deterministic clock and event ID generator.
type Harness struct {
	app    *app.App
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh data directory that is removed
// afterwards.
//
// Execution flow:
// 1. Build the configuration and open the store
// 2. Execute setup steps, discarding their events
// 3. Execute flow steps, recording outcomes and events
// 4. Evaluate assertions
//
// An error is returned only when the scenario could not be executed; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "metastore-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg, err := buildConfig(dir, scenario.Config)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	a, err := app.Open(ctx, cfg,
		app.WithLogger(logger),
		app.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
		app.WithIDGenerator(testutil.NewSequentialIDs("")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer a.Close()

	h := &Harness{app: a, logger: logger}
	result := NewResult()

	for i, step := range scenario.Setup {
		trace, err := h.execute(ctx, i, step)
		if !succeeded(trace.Outcome) {
			return nil, fmt.Errorf("setup[%d]: %s by %s: %s: %w", i, step.Op, step.Actor, trace.Outcome, err)
		}
	}
	h.drainEvents()

	for i, step := range scenario.Flow {
		trace, _ := h.execute(ctx, i, step)
		result.Trace = append(result.Trace, trace)
		result.Events = append(result.Events, h.drainEvents()...)
		checkExpect(result, trace, step.Expect)
	}

	for i, assertion := range scenario.Assertions {
		if err := h.evaluate(ctx, assertion, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] (%s): %v", i, assertion.Type, err))
		}
	}
	return result, nil
}

// buildConfig overlays the scenario overrides on a configuration rooted at
// dir. Background value-log GC is off unless the scenario sets it.
func buildConfig(dir string, overrides map[string]any) (*config.Config, error) {
	m := maps.Clone(overrides)
	if m == nil {
		m = make(map[string]any)
	}
	m["data_dir"] = dir

	store, _ := m["store"].(map[string]any)
	store = maps.Clone(store)
	if store == nil {
		store = make(map[string]any)
	}
	if _, ok := store["gc_interval"]; !ok {
		store["gc_interval"] = "0s"
	}
	m["store"] = store

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}
	return cfg, nil
}

// execute runs one step. The returned error is the raw operation error.
func (h *Harness) execute(ctx context.Context, index int, step Step) (TraceEvent, error) {
	trace := TraceEvent{Step: index, Op: step.Op, Actor: step.Actor}
	eng := h.app.Engine

	var (
		res engine.Result
		err error
	)
	switch step.Op {
	case OpPut, OpPatch:
		var facts []fact.Fact
		facts, err = toFacts(step.Facts)
		if err == nil {
			if step.Op == OpPut {
				res, err = eng.Put(ctx, step.Actor, facts)
			} else {
				res, err = eng.Patch(ctx, step.Actor, facts)
			}
		}
	case OpDelete:
		var p fact.Pattern
		p, err = step.Pattern.Pattern()
		if err == nil {
			res, err = eng.Delete(ctx, step.Actor, p)
		}
	case OpAuthorize:
		var lvl authz.Level
		lvl, err = authz.ParseLevel(step.Level)
		if err == nil {
			err = eng.Authorize(ctx, step.Actor, step.Subject, Expand(step.Resource), lvl, step.CreateCollection)
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	trace.Outcome = outcomeOf(step.Op, res, err)
	switch trace.Outcome {
	case OutcomeCommitted:
		trace.Seq = res.Seq
		trace.Removed = keys(res.ChangeSet.Remove)
		trace.Added = keys(res.ChangeSet.Add)
	case OutcomeRejected:
		for _, v := range validation.Violations(err) {
			trace.Violations = append(trace.Violations, v.String())
		}
	case OutcomeUnauthorized, OutcomeNotFound, OutcomeError:
		trace.Err = err.Error()
	}
	h.logger.Debug("step executed", "step", index, "op", step.Op, "actor", step.Actor, "outcome", trace.Outcome)
	return trace, err
}

func outcomeOf(op string, res engine.Result, err error) string {
	switch {
	case err == nil && op == OpAuthorize:
		return OutcomeApplied
	case err == nil && res.Noop():
		return OutcomeNoop
	case err == nil:
		return OutcomeCommitted
	case validation.IsValidationError(err):
		return OutcomeRejected
	case authz.IsUnauthorized(err):
		return OutcomeUnauthorized
	case authz.IsNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

func succeeded(outcome string) bool {
	return outcome == OutcomeCommitted || outcome == OutcomeNoop || outcome == OutcomeApplied
}

func keys(s fact.Set) []string {
	facts := s.Facts()
	if len(facts) == 0 {
		return nil
	}
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Key()
	}
	return out
}

// drainEvents collects every event already delivered. Emission is
// synchronous with the operation, so nothing is missed.
func (h *Harness) drainEvents() []EventRecord {
	var out []EventRecord
	ch := h.app.Emitter.Events()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, record(ev))
		default:
			return out
		}
	}
}

func record(ev events.Event) EventRecord {
	r := EventRecord{
		ID:       ev.ID,
		Category: string(ev.Category),
		Type:     string(ev.Type),
		Actor:    ev.Actor,
		Seq:      ev.Seq,
	}
	if ev.Permission != nil {
		r.Subject = ev.Permission.Subject
		r.Resource = ev.Permission.Resource
		r.Level = ev.Permission.Level.String()
	}
	if ev.OldLevel != nil {
		r.OldLevel = ev.OldLevel.String()
	}
	return r
}

func checkExpect(result *Result, trace TraceEvent, expect *Expect) {
	if expect == nil {
		if !succeeded(trace.Outcome) {
			result.AddError(fmt.Sprintf("flow[%d]: %s by %s was %s: %s",
				trace.Step, trace.Op, trace.Actor, trace.Outcome, failure(trace)))
		}
		return
	}

	if trace.Outcome != expect.Outcome {
		result.AddError(fmt.Sprintf("flow[%d]: expected outcome %q, got %q: %s",
			trace.Step, expect.Outcome, trace.Outcome, failure(trace)))
		return
	}
	for _, want := range expect.Violations {
		found := slices.ContainsFunc(trace.Violations, func(v string) bool {
			return strings.Contains(v, want)
		})
		if !found {
			result.AddError(fmt.Sprintf("flow[%d]: no violation mentions %q (got %v)",
				trace.Step, want, trace.Violations))
		}
	}
}

func failure(trace TraceEvent) string {
	if len(trace.Violations) > 0 {
		return strings.Join(trace.Violations, "; ")
	}
	if trace.Err != "" {
		return trace.Err
	}
	return "no error"
}
