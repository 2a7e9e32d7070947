package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/metastore/internal/fact"
)

// Registrar registers protected resources with the authorization subsystem.
type Registrar interface {
	CreateResource(ctx context.Context, resource, creator string) (bool, error)
	DeleteResource(ctx context.Context, resource string) error
}

// Config configures a Manager.
type Config struct {
	// Inverses are predicate pairs applied in both directions.
	Inverses map[string]string

	// VocabularyGraph holds owl:inverseOf declarations.
	VocabularyGraph string

	// ProtectedClasses are classes whose new instances become resources
	// under access control.
	ProtectedClasses []string
}

// Manager is the lifecycle manager of the coordinator.
type Manager struct {
	inverses        Inverses
	vocabularyGraph string
	protected       map[string]bool
	registrar       Registrar
	logger          *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistrar sets where protected resources are registered.
func WithRegistrar(r Registrar) Option {
	return func(m *Manager) { m.registrar = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	inv, err := NewInverses(cfg.Inverses)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		inverses:        inv,
		vocabularyGraph: cfg.VocabularyGraph,
		protected:       make(map[string]bool, len(cfg.ProtectedClasses)),
		logger:          slog.Default(),
	}
	for _, c := range cfg.ProtectedClasses {
		m.protected[c] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewCache returns an InverseCache for one commit against store.
func (m *Manager) NewCache(store Reader) *InverseCache {
	return NewInverseCache(m.inverses, m.vocabularyGraph, store)
}

// Infer adds inverse counterparts to cs.
func (m *Manager) Infer(cs fact.ChangeSet, cache *InverseCache) (fact.ChangeSet, error) {
	return Infer(cs, cache)
}

// Touch updates the lifecycle records of every subject of cs.
func (m *Manager) Touch(tx MetaStore, cs fact.ChangeSet, actor string, at time.Time) (Snapshot, error) {
	return Touch(tx, cs, actor, at)
}

// ProtectedResources returns the IRI subjects that cs types with a
// protected class, sorted.
func (m *Manager) ProtectedResources(cs fact.ChangeSet) []string {
	if len(m.protected) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, f := range cs.Add.Facts() {
		if f.Predicate != fact.RDFType || !f.Subject.IsIRI() || !f.Object.IsIRI() {
			continue
		}
		if m.protected[f.Object.Value] && !seen[f.Subject.Value] {
			seen[f.Subject.Value] = true
			out = append(out, f.Subject.Value)
		}
	}
	return out
}

// Register registers the protected resources cs creates, with actor as
// creator. It returns the resources that did not exist before.
func (m *Manager) Register(ctx context.Context, cs fact.ChangeSet, actor string) ([]string, error) {
	if m.registrar == nil {
		return nil, nil
	}
	var created []string
	for _, resource := range m.ProtectedResources(cs) {
		ok, err := m.registrar.CreateResource(ctx, resource, actor)
		if err != nil {
			if uerr := m.Unregister(ctx, created); uerr != nil {
				m.logger.Error("unregister resources", "error", uerr)
			}
			return nil, fmt.Errorf("register resource %s: %w", resource, err)
		}
		if ok {
			m.logger.Debug("registered resource", "resource", resource, "creator", actor)
			created = append(created, resource)
		}
	}
	return created, nil
}

// Unregister removes resources created by Register.
func (m *Manager) Unregister(ctx context.Context, resources []string) error {
	if m.registrar == nil {
		return nil
	}
	for _, r := range resources {
		if err := m.registrar.DeleteResource(ctx, r); err != nil {
			return fmt.Errorf("unregister resource %s: %w", r, err)
		}
	}
	return nil
}
