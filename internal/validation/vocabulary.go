package validation

import (
	"context"

	"github.com/roach88/metastore/internal/fact"
)

// ProtectSystemVocabulary rejects removing any statement about a system
// vocabulary term. Extending those terms is allowed.
type ProtectSystemVocabulary struct {
	Terms map[string]bool
}

// Name implements Validator.
func (ProtectSystemVocabulary) Name() string { return "protect-system-vocabulary" }

// Validate implements Validator.
func (v ProtectSystemVocabulary) Validate(_ context.Context, req Request, report func(Violation)) error {
	for _, f := range req.Remove.Facts() {
		if f.Subject.IsIRI() && v.Terms[f.Subject.Value] {
			report(violationFor(f, "system vocabulary cannot be removed"))
		}
	}
	return nil
}

// InverseForUsedProperties rejects declaring an inverse for a property that
// already has facts in the metadata graph; existing facts would lack their
// inverse counterparts.
type InverseForUsedProperties struct {
	MetadataGraph string
}

// Name implements Validator.
func (InverseForUsedProperties) Name() string { return "inverse-for-used-properties" }

// Validate implements Validator.
func (v InverseForUsedProperties) Validate(_ context.Context, req Request, report func(Violation)) error {
	for _, f := range req.Add.Facts() {
		if f.Predicate != fact.OWLInverseOf || !f.Subject.IsIRI() || !f.Object.IsIRI() {
			continue
		}
		for _, property := range []string{f.Subject.Value, f.Object.Value} {
			used, err := req.Store.Exists(fact.Pattern{Graph: v.MetadataGraph, Predicate: property})
			if err != nil {
				return err
			}
			if used {
				report(violationFor(f, "cannot declare an inverse for <"+property+">, which is already in use"))
			}
		}
	}
	return nil
}
