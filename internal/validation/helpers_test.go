package validation

import (
	"context"
	"errors"

	"github.com/roach88/metastore/internal/authz"
	"github.com/roach88/metastore/internal/fact"
)

const (
	metaGraph  = "urn:graph:metadata"
	vocabGraph = "urn:graph:vocabulary"
	dataset    = "https://example.org/Dataset"
	creatorP   = "https://example.org/creator"
	person     = "https://example.org/Person"
)

// memReader is a Reader over a fixed fact set.
type memReader fact.Set

func newReader(facts ...fact.Fact) memReader {
	return memReader(fact.NewSet(facts...))
}

func (r memReader) Find(p fact.Pattern) ([]fact.Fact, error) {
	return fact.Set(r).Filter(p.Matches).Facts(), nil
}

func (r memReader) Exists(p fact.Pattern) (bool, error) {
	for _, f := range r {
		if p.Matches(f) {
			return true, nil
		}
	}
	return false, nil
}

type failingReader struct{}

func (failingReader) Find(fact.Pattern) ([]fact.Fact, error) { return nil, errors.New("store offline") }
func (failingReader) Exists(fact.Pattern) (bool, error)      { return false, errors.New("store offline") }

// fakePermissions maps actor+resource to a level. Resources not listed are
// unregistered.
type fakePermissions struct {
	resources map[string]map[string]authz.Level
	err       error
}

func (f fakePermissions) GetPermission(_ context.Context, actor, resource string) (authz.Permission, error) {
	if f.err != nil {
		return authz.Permission{}, f.err
	}
	grants, ok := f.resources[resource]
	if !ok {
		return authz.Permission{}, &authz.Error{Code: authz.ErrCodeNotFound, Message: "resource not found", Resource: resource}
	}
	return authz.Permission{Subject: actor, Resource: resource, Level: grants[actor]}, nil
}

func meta(subject, predicate string, object fact.Node) fact.Fact {
	return fact.New(metaGraph, fact.IRI(subject), predicate, object)
}

func vocab(subject, predicate string, object fact.Node) fact.Fact {
	return fact.New(vocabGraph, fact.IRI(subject), predicate, object)
}

func request(actor, graph string, store Reader, remove, add []fact.Fact) Request {
	return Request{
		Actor:  actor,
		Graph:  graph,
		Remove: fact.NewSet(remove...),
		Add:    fact.NewSet(add...),
		Store:  store,
	}
}

func intPtr(n int) *int { return &n }
