package validation

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed shape_schema.cue
var shapeSchema string

// PropertyShape constrains the values of one predicate on instances of a
// class.
type PropertyShape struct {
	Path     string `json:"path"`
	MinCount *int   `json:"minCount,omitempty"`
	MaxCount *int   `json:"maxCount,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Datatype string `json:"datatype,omitempty"`
	Class    string `json:"class,omitempty"`
}

// Shape describes the allowed facts about instances of Class. A closed
// shape rejects predicates it does not list.
type Shape struct {
	Class      string          `json:"class"`
	Closed     bool            `json:"closed"`
	Properties []PropertyShape `json:"properties"`
}

// ShapeError is a shape file error with source position.
type ShapeError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ShapeError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadShapes reads and parses a CUE shape file.
func LoadShapes(path string) ([]Shape, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shapes: %w", err)
	}
	return ParseShapes(path, src)
}

// ParseShapes compiles src against the shape schema and decodes the
// `shapes` list.
//
//	shapes: [{
//		class: "https://example.org/Dataset"
//		properties: [{path: "http://www.w3.org/2000/01/rdf-schema#label", minCount: 1}]
//	}]
func ParseShapes(filename string, src []byte) ([]Shape, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(shapeSchema, cue.Filename("shape_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	shapesVal, _ := v.LookupPath(cue.ParsePath("shapes")).Default()
	var shapes []Shape
	if err := shapesVal.Decode(&shapes); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := shapesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		for j, p := range shapes[i].Properties {
			if p.MinCount != nil && p.MaxCount != nil && *p.MinCount > *p.MaxCount {
				return nil, &ShapeError{
					Field:   fmt.Sprintf("shapes[%d].properties[%d]", i, j),
					Message: fmt.Sprintf("minCount %d exceeds maxCount %d", *p.MinCount, *p.MaxCount),
					Pos:     iter.Value().Pos(),
				}
			}
		}
	}
	return shapes, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &ShapeError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
