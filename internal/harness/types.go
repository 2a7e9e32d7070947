package harness

// Step outcomes.
const (
	OutcomeCommitted    = "committed"
	OutcomeNoop         = "noop"
	OutcomeApplied      = "applied"
	OutcomeRejected     = "rejected"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Actor   string `json:"actor"`
	Outcome string `json:"outcome"`

	// Seq is the log sequence number of a committed step.
	Seq int64 `json:"seq,omitempty"`

	// Removed and Added are fact keys of the net change.
	Removed []string `json:"removed,omitempty"`
	Added   []string `json:"added,omitempty"`

	// Violations are the rendered violations of a rejected step.
	Violations []string `json:"violations,omitempty"`

	// Err is the error text for any other failed step.
	Err string `json:"error,omitempty"`
}

// EventRecord is an outbound event observed during the flow.
type EventRecord struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Actor    string `json:"actor,omitempty"`
	Seq      int64  `json:"seq,omitempty"`

	// Permission events only.
	Subject  string `json:"subject,omitempty"`
	Resource string `json:"resource,omitempty"`
	Level    string `json:"level,omitempty"`
	OldLevel string `json:"old_level,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Events holds the events emitted during the flow, in delivery order.
	Events []EventRecord `json:"events"`

	// Errors explains every failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Events: []EventRecord{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
