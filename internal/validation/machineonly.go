package validation

import (
	"context"

	"github.com/roach88/metastore/internal/fact"
)

// MachineOnly knows which predicates and classes are reserved for
// system-derived data, and which actors are system actors.
//
// A term is machine-only when it is configured as such or when the
// vocabulary graph holds `<term> ms:machineOnly true`.
type MachineOnly struct {
	systemActors    map[string]bool
	predicates      map[string]bool
	classes         map[string]bool
	vocabularyGraph string
}

// NewMachineOnly builds the policy.
func NewMachineOnly(systemActors, predicates, classes []string, vocabularyGraph string) *MachineOnly {
	toSet := func(items []string) map[string]bool {
		m := make(map[string]bool, len(items))
		for _, it := range items {
			m[it] = true
		}
		return m
	}
	return &MachineOnly{
		systemActors:    toSet(systemActors),
		predicates:      toSet(predicates),
		classes:         toSet(classes),
		vocabularyGraph: vocabularyGraph,
	}
}

// IsSystemActor reports whether actor bypasses machine-only and permission
// rules.
func (m *MachineOnly) IsSystemActor(actor string) bool {
	return m != nil && m.systemActors[actor]
}

func (m *MachineOnly) declared(r Reader, iri string, configured map[string]bool) (bool, error) {
	if configured[iri] {
		return true, nil
	}
	if m.vocabularyGraph == "" || r == nil {
		return false, nil
	}
	subj, obj := fact.IRI(iri), fact.True
	return r.Exists(fact.Pattern{Graph: m.vocabularyGraph, Subject: &subj, Predicate: fact.MachineOnly, Object: &obj})
}

// IsPredicate reports whether predicate is machine-only.
func (m *MachineOnly) IsPredicate(r Reader, predicate string) (bool, error) {
	return m.declared(r, predicate, m.predicates)
}

// IsClass reports whether class is machine-only.
func (m *MachineOnly) IsClass(r Reader, class string) (bool, error) {
	return m.declared(r, class, m.classes)
}

// MachineOnlyPredicates rejects any change to a fact whose predicate is
// machine-only.
type MachineOnlyPredicates struct {
	Policy *MachineOnly
}

// Name implements Validator.
func (MachineOnlyPredicates) Name() string { return "machine-only-predicates" }

// Validate implements Validator.
func (v MachineOnlyPredicates) Validate(_ context.Context, req Request, report func(Violation)) error {
	if v.Policy.IsSystemActor(req.Actor) {
		return nil
	}
	cache := make(map[string]bool)
	for _, f := range req.changed() {
		machine, seen := cache[f.Predicate]
		if !seen {
			var err error
			machine, err = v.Policy.IsPredicate(req.Store, f.Predicate)
			if err != nil {
				return err
			}
			cache[f.Predicate] = machine
		}
		if machine {
			report(violationFor(f, "predicate is machine-only and cannot be changed"))
		}
	}
	return nil
}

// MachineOnlyClasses rejects typing or untyping a resource with a
// machine-only class.
type MachineOnlyClasses struct {
	Policy *MachineOnly
}

// Name implements Validator.
func (MachineOnlyClasses) Name() string { return "machine-only-classes" }

// Validate implements Validator.
func (v MachineOnlyClasses) Validate(_ context.Context, req Request, report func(Violation)) error {
	if v.Policy.IsSystemActor(req.Actor) {
		return nil
	}
	for _, f := range req.changed() {
		if f.Predicate != fact.RDFType || !f.Object.IsIRI() {
			continue
		}
		machine, err := v.Policy.IsClass(req.Store, f.Object.Value)
		if err != nil {
			return err
		}
		if machine {
			report(violationFor(f, "class is machine-only; its instances are managed by the system"))
		}
	}
	return nil
}

// ProtectMachineOnlyDeclarations rejects changes to the set of machine-only
// predicates and classes itself.
type ProtectMachineOnlyDeclarations struct {
	Policy *MachineOnly
}

// Name implements Validator.
func (ProtectMachineOnlyDeclarations) Name() string { return "protect-machine-only-declarations" }

// Validate implements Validator.
func (v ProtectMachineOnlyDeclarations) Validate(_ context.Context, req Request, report func(Violation)) error {
	if v.Policy.IsSystemActor(req.Actor) {
		return nil
	}
	for _, f := range req.changed() {
		if f.Predicate == fact.MachineOnly {
			report(violationFor(f, "machine-only declarations can only be changed by the system"))
		}
	}
	return nil
}
