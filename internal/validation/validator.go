package validation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/metastore/internal/fact"
)

// Violation is one reason a change-set was rejected.
type Violation struct {
	Message   string     `json:"message"`
	Subject   fact.Node  `json:"subject"`
	Predicate string     `json:"predicate,omitempty"`
	Object    *fact.Node `json:"object,omitempty"`
}

// String renders the violation on one line.
func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(v.Message)
	b.WriteString(" (subject ")
	b.WriteString(v.Subject.Key())
	if v.Predicate != "" {
		b.WriteString(", predicate <")
		b.WriteString(v.Predicate)
		b.WriteString(">")
	}
	if v.Object != nil {
		b.WriteString(", object ")
		b.WriteString(v.Object.Key())
	}
	b.WriteString(")")
	return b.String()
}

// violationFor builds a violation naming every component of f.
func violationFor(f fact.Fact, msg string) Violation {
	obj := f.Object
	return Violation{Message: msg, Subject: f.Subject, Predicate: f.Predicate, Object: &obj}
}

// SortViolations orders violations by subject, predicate, object and message.
func SortViolations(vs []Violation) {
	slices.SortFunc(vs, func(a, b Violation) int {
		objKey := func(v Violation) string {
			if v.Object == nil {
				return ""
			}
			return v.Object.Key()
		}
		return cmp.Or(
			strings.Compare(a.Subject.Key(), b.Subject.Key()),
			strings.Compare(a.Predicate, b.Predicate),
			strings.Compare(objKey(a), objKey(b)),
			strings.Compare(a.Message, b.Message),
		)
	})
}

// Reader is the pre-change view of the store.
type Reader interface {
	Find(p fact.Pattern) ([]fact.Fact, error)
	Exists(p fact.Pattern) (bool, error)
}

// Request is one graph's share of a proposed change.
type Request struct {
	Actor  string
	Graph  string
	Remove fact.Set
	Add    fact.Set
	Store  Reader
}

// changed returns every fact the request removes or adds, in canonical order.
func (r Request) changed() []fact.Fact {
	all := r.Remove.Clone()
	all.AddAll(r.Add)
	return all.Facts()
}

// Validator inspects a request and reports violations.
type Validator interface {
	Name() string
	Validate(ctx context.Context, req Request, report func(Violation)) error
}

// Chain runs validators in order. Every validator runs even after
// violations have been reported.
type Chain []Validator

// Name implements Validator.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = v.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Validate implements Validator.
func (c Chain) Validate(ctx context.Context, req Request, report func(Violation)) error {
	for _, v := range c {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.Validate(ctx, req, report); err != nil {
			return fmt.Errorf("%s: %w", v.Name(), err)
		}
	}
	return nil
}

// Collect runs v and returns its violations in sorted order.
func Collect(ctx context.Context, v Validator, req Request) ([]Violation, error) {
	var out []Violation
	if err := v.Validate(ctx, req, func(viol Violation) { out = append(out, viol) }); err != nil {
		return nil, err
	}
	SortViolations(out)
	return out, nil
}

// ErrCodeValidationFailed identifies a ValidationError.
const ErrCodeValidationFailed = "VALIDATION_FAILED"

// ValidationError rejects a change-set. It carries every violation found.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("%s: %d violation(s): %s", ErrCodeValidationFailed, len(e.Violations), strings.Join(msgs, "; "))
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Violations extracts the violations from a ValidationError, or nil.
func Violations(err error) []Violation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}
