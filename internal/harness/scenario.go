package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
)

// Scenario defines a conformance scenario: a store configuration, steps to
// run against it, and assertions on the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config holds configuration overrides in the config file format. The
	// data directory is always a fresh temporary directory.
	Config map[string]any `yaml:"config,omitempty"`

	// Setup steps establish initial state and must succeed. Their events
	// are not recorded.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are traced and checked against their expect clauses.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and the recorded events.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpPut       = "put"
	OpPatch     = "patch"
	OpDelete    = "delete"
	OpAuthorize = "authorize"
)

// Step is one operation.
type Step struct {
	Op    string `yaml:"op"`
	Actor string `yaml:"actor"`

	// Facts is used by put and patch.
	Facts []FactSpec `yaml:"facts,omitempty"`

	// Pattern is used by delete.
	Pattern *FactSpec `yaml:"pattern,omitempty"`

	// Subject, Resource, Level and CreateCollection are used by authorize.
	Subject          string `yaml:"subject,omitempty"`
	Resource         string `yaml:"resource,omitempty"`
	Level            string `yaml:"level,omitempty"`
	CreateCollection bool   `yaml:"create_collection,omitempty"`

	// Expect checks the step outcome. A flow step without one only fails
	// the scenario on an unexpected error.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Outcome is one of committed, noop, applied, rejected, unauthorized,
	// not_found or error.
	Outcome string `yaml:"outcome"`

	// Violations are substrings that must each appear in some violation
	// message of a rejected step.
	Violations []string `yaml:"violations,omitempty"`
}

// FactSpec is the compact scenario form of a fact or a fact pattern.
type FactSpec struct {
	Graph     string `yaml:"g,omitempty"`
	Subject   string `yaml:"s,omitempty"`
	Predicate string `yaml:"p,omitempty"`

	// At most one of these names the object.
	Literal *string `yaml:"o,omitempty"`
	IRI     string  `yaml:"iri,omitempty"`
	Blank   string  `yaml:"blank,omitempty"`
}

// Assertion validates the state after the flow.
type Assertion struct {
	// Type is one of facts_equal, fact_count, permission, event or
	// log_length.
	Type string `yaml:"type"`

	// Pattern selects facts (facts_equal, fact_count).
	Pattern *FactSpec `yaml:"pattern,omitempty"`

	// Facts is the exact expected match (facts_equal).
	Facts []FactSpec `yaml:"facts,omitempty"`

	// Count is the expected number (fact_count, log_length).
	Count *int `yaml:"count,omitempty"`

	// Actor, Resource and Level describe a grant (permission).
	Actor    string `yaml:"actor,omitempty"`
	Resource string `yaml:"resource,omitempty"`
	Level    string `yaml:"level,omitempty"`

	// Event is matched against the recorded events (event).
	Event *EventMatch `yaml:"event,omitempty"`
}

// EventMatch selects events. Empty fields match anything.
type EventMatch struct {
	Category string `yaml:"category,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Actor    string `yaml:"actor,omitempty"`
	Subject  string `yaml:"subject,omitempty"`
	Resource string `yaml:"resource,omitempty"`
	Level    string `yaml:"level,omitempty"`
	OldLevel string `yaml:"old_level,omitempty"`
}

// Assertion type constants.
const (
	AssertFactsEqual = "facts_equal"
	AssertFactCount  = "fact_count"
	AssertPermission = "permission"
	AssertEvent      = "event"
	AssertLogLength  = "log_length"
)

var outcomes = []string{
	OutcomeCommitted, OutcomeNoop, OutcomeApplied, OutcomeRejected,
	OutcomeUnauthorized, OutcomeNotFound, OutcomeError,
}

// prefixes expand compact IRIs in scenario files.
var prefixes = map[string]string{
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"owl":  "http://www.w3.org/2002/07/owl#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
	"ms":   fact.Namespace,
	"ex":   "https://example.org/",
}

// Expand turns "prefix:local" into a full IRI. Anything else is returned
// unchanged.
func Expand(term string) string {
	if strings.Contains(term, "://") {
		return term
	}
	prefix, local, ok := strings.Cut(term, ":")
	if !ok {
		return term
	}
	if base, known := prefixes[prefix]; known {
		return base + local
	}
	return term
}

func subjectNode(s string) fact.Node {
	if label, ok := strings.CutPrefix(s, "_:"); ok {
		return fact.Blank(label)
	}
	return fact.IRI(Expand(s))
}

func (f FactSpec) object() (*fact.Node, error) {
	var nodes []fact.Node
	if f.Literal != nil {
		nodes = append(nodes, fact.Literal(*f.Literal))
	}
	if f.IRI != "" {
		nodes = append(nodes, fact.IRI(Expand(f.IRI)))
	}
	if f.Blank != "" {
		nodes = append(nodes, fact.Blank(f.Blank))
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return &nodes[0], nil
	default:
		return nil, fmt.Errorf("only one of o, iri and blank may be set")
	}
}

// Fact converts a complete spec into a fact.
func (f FactSpec) Fact() (fact.Fact, error) {
	if f.Subject == "" || f.Predicate == "" {
		return fact.Fact{}, fmt.Errorf("s and p are required")
	}
	obj, err := f.object()
	if err != nil {
		return fact.Fact{}, err
	}
	if obj == nil {
		return fact.Fact{}, fmt.Errorf("one of o, iri and blank is required")
	}
	return fact.New(Expand(f.Graph), subjectNode(f.Subject), Expand(f.Predicate), *obj), nil
}

// Pattern converts a spec into a pattern. Every part is optional.
func (f FactSpec) Pattern() (fact.Pattern, error) {
	obj, err := f.object()
	if err != nil {
		return fact.Pattern{}, err
	}
	p := fact.Pattern{Graph: Expand(f.Graph), Predicate: Expand(f.Predicate), Object: obj}
	if f.Subject != "" {
		s := subjectNode(f.Subject)
		p.Subject = &s
	}
	return p, nil
}

func toFacts(specs []FactSpec) ([]fact.Fact, error) {
	out := make([]fact.Fact, len(specs))
	for i, s := range specs {
		f, err := s.Fact()
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, ok := s.Config["data_dir"]; ok {
		return fmt.Errorf("config: data_dir is chosen by the harness")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	switch step.Op {
	case OpPut, OpPatch:
		if len(step.Facts) == 0 {
			return fmt.Errorf("facts are required for %s", step.Op)
		}
		if _, err := toFacts(step.Facts); err != nil {
			return err
		}
	case OpDelete:
		if step.Pattern == nil {
			return fmt.Errorf("pattern is required for delete")
		}
		if _, err := step.Pattern.Pattern(); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	case OpAuthorize:
		if step.Subject == "" || step.Resource == "" || step.Level == "" {
			return fmt.Errorf("subject, resource and level are required for authorize")
		}
		if _, err := authz.ParseLevel(step.Level); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Expect != nil {
		if !slices.Contains(outcomes, step.Expect.Outcome) {
			return fmt.Errorf("expect: unknown outcome %q", step.Expect.Outcome)
		}
		if len(step.Expect.Violations) > 0 && step.Expect.Outcome != OutcomeRejected {
			return fmt.Errorf("expect: violations require outcome %q", OutcomeRejected)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFactsEqual:
		if a.Pattern == nil {
			return fmt.Errorf("pattern is required for facts_equal")
		}
		if _, err := toFacts(a.Facts); err != nil {
			return err
		}
	case AssertFactCount:
		if a.Pattern == nil || a.Count == nil {
			return fmt.Errorf("pattern and count are required for fact_count")
		}
	case AssertPermission:
		if a.Actor == "" || a.Resource == "" || a.Level == "" {
			return fmt.Errorf("actor, resource and level are required for permission")
		}
		if _, err := authz.ParseLevel(a.Level); err != nil {
			return err
		}
	case AssertEvent:
		if a.Event == nil {
			return fmt.Errorf("event is required for event")
		}
	case AssertLogLength:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("a non-negative count is required for log_length")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}

	if a.Pattern != nil {
		if _, err := a.Pattern.Pattern(); err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
	}
	return nil
}
