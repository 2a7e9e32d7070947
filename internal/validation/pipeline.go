package validation

import (
	"context"

	"github.com/roach88/metastore/internal/fact"
)

// Pipeline routes each graph's share of a change-set to that graph's chain.
// Graphs without a registered chain use the fallback chain.
type Pipeline struct {
	chains   map[string]Chain
	fallback Chain
}

// NewPipeline returns a pipeline with no validators.
func NewPipeline() *Pipeline {
	return &Pipeline{chains: make(map[string]Chain)}
}

// Register appends validators to the chain of graph.
func (p *Pipeline) Register(graph string, vs ...Validator) {
	p.chains[graph] = append(p.chains[graph], vs...)
}

// RegisterFallback appends validators to the chain used for unregistered
// graphs.
func (p *Pipeline) RegisterFallback(vs ...Validator) {
	p.fallback = append(p.fallback, vs...)
}

// Chain returns the chain used for graph.
func (p *Pipeline) Chain(graph string) Chain {
	if c, ok := p.chains[graph]; ok {
		return c
	}
	return p.fallback
}

// Validate runs every graph's chain and returns a *ValidationError holding
// the union of their violations, or nil when the change is approved. Any
// other error is an infrastructure failure.
func (p *Pipeline) Validate(ctx context.Context, actor string, cs fact.ChangeSet, store Reader) error {
	var all []Violation
	for graph, part := range cs.Partition() {
		req := Request{
			Actor:  actor,
			Graph:  graph,
			Remove: part.Remove,
			Add:    part.Add,
			Store:  store,
		}
		vs, err := Collect(ctx, p.Chain(graph), req)
		if err != nil {
			return err
		}
		all = append(all, vs...)
	}
	if len(all) == 0 {
		return nil
	}
	SortViolations(all)
	return &ValidationError{Violations: all}
}
