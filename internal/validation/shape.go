package validation

import (
	"context"
	"fmt"

	"github.com/roach88/metastore/internal/fact"
)

// ShapeValidator checks every subject the request touches against the
// shapes of its classes, as the subject will look after the change.
type ShapeValidator struct {
	byClass map[string][]Shape
}

// NewShapeValidator indexes shapes by class.
func NewShapeValidator(shapes []Shape) *ShapeValidator {
	byClass := make(map[string][]Shape)
	for _, s := range shapes {
		byClass[s.Class] = append(byClass[s.Class], s)
	}
	return &ShapeValidator{byClass: byClass}
}

// Name implements Validator.
func (*ShapeValidator) Name() string { return "shapes" }

// Validate implements Validator.
func (v *ShapeValidator) Validate(_ context.Context, req Request, report func(Violation)) error {
	if len(v.byClass) == 0 {
		return nil
	}
	cs := fact.ChangeSet{Remove: req.Remove, Add: req.Add}
	for _, subject := range cs.Subjects() {
		after, err := afterState(req, subject, "")
		if err != nil {
			return err
		}
		if len(after) == 0 {
			continue
		}
		for _, f := range after {
			if f.Predicate != fact.RDFType || !f.Object.IsIRI() {
				continue
			}
			for _, shape := range v.byClass[f.Object.Value] {
				if err := checkShape(req, subject, after, shape, report); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkShape(req Request, subject fact.Node, after []fact.Fact, shape Shape, report func(Violation)) error {
	byPredicate := make(map[string][]fact.Fact)
	for _, f := range after {
		byPredicate[f.Predicate] = append(byPredicate[f.Predicate], f)
	}

	listed := map[string]bool{fact.RDFType: true}
	for _, p := range shape.Properties {
		listed[p.Path] = true
		values := byPredicate[p.Path]

		if p.MinCount != nil && len(values) < *p.MinCount {
			report(Violation{
				Message:   fmt.Sprintf("<%s> requires at least %d value(s) for this property, found %d", shape.Class, *p.MinCount, len(values)),
				Subject:   subject,
				Predicate: p.Path,
			})
		}
		if p.MaxCount != nil && len(values) > *p.MaxCount {
			report(Violation{
				Message:   fmt.Sprintf("<%s> allows at most %d value(s) for this property, found %d", shape.Class, *p.MaxCount, len(values)),
				Subject:   subject,
				Predicate: p.Path,
			})
		}

		for _, f := range values {
			obj := f.Object
			if p.Kind != "" && obj.Kind.String() != p.Kind {
				report(violationFor(f, fmt.Sprintf("value must be of kind %s", p.Kind)))
				continue
			}
			if p.Datatype != "" && datatypeOf(obj) != p.Datatype {
				report(violationFor(f, fmt.Sprintf("value must have datatype <%s>", p.Datatype)))
			}
			if p.Class != "" {
				ok, err := hasType(req, obj, p.Class)
				if err != nil {
					return err
				}
				if !ok {
					report(violationFor(f, fmt.Sprintf("value must be an instance of <%s>", p.Class)))
				}
			}
		}
	}

	if shape.Closed {
		for _, f := range after {
			if !listed[f.Predicate] {
				report(violationFor(f, fmt.Sprintf("predicate is not allowed by closed shape <%s>", shape.Class)))
			}
		}
	}
	return nil
}

// datatypeOf returns the datatype of a literal, reading plain literals as
// xsd:string.
func datatypeOf(n fact.Node) string {
	if !n.IsLiteral() {
		return ""
	}
	if n.Datatype == "" && n.Lang == "" {
		return fact.XSDString
	}
	if n.Lang != "" {
		return "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	}
	return n.Datatype
}

func hasType(req Request, n fact.Node, class string) (bool, error) {
	if !n.IsResource() {
		return false, nil
	}
	types, err := afterState(req, n, fact.RDFType)
	if err != nil {
		return false, err
	}
	for _, f := range types {
		if f.Object.IsIRI() && f.Object.Value == class {
			return true, nil
		}
	}
	return false, nil
}

// afterState returns the facts about subject in the request's graph once the
// change is applied. An empty predicate matches every predicate.
func afterState(req Request, subject fact.Node, predicate string) ([]fact.Fact, error) {
	s := subject
	p := fact.Pattern{Graph: req.Graph, Subject: &s, Predicate: predicate}
	before, err := req.Store.Find(p)
	if err != nil {
		return nil, err
	}
	state := fact.NewSet(before...)
	for _, f := range req.Remove {
		if p.Matches(f) {
			state.Delete(f)
		}
	}
	for _, f := range req.Add {
		if p.Matches(f) {
			state.Add(f)
		}
	}
	return state.Facts(), nil
}
