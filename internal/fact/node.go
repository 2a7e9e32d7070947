package fact

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes the three kinds of RDF terms.
type Kind uint8

const (
	// KindIRI is a named resource.
	KindIRI Kind = iota + 1
	// KindBlank is an anonymous resource, scoped to the store.
	KindBlank
	// KindLiteral is a value with an optional datatype or language tag.
	KindLiteral
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "iri":
		return KindIRI, nil
	case "blank":
		return KindBlank, nil
	case "literal":
		return KindLiteral, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

// Node is one RDF term. The zero Node is invalid and never stored.
type Node struct {
	Kind  Kind
	Value string

	// Datatype is the literal datatype IRI. Empty means xsd:string.
	Datatype string

	// Lang is the literal language tag.
	Lang string
}

// IRI returns a named resource node.
func IRI(v string) Node {
	return Node{Kind: KindIRI, Value: v}
}

// Blank returns a blank node with the given label.
func Blank(label string) Node {
	return Node{Kind: KindBlank, Value: label}
}

// Literal returns a plain string literal.
func Literal(v string) Node {
	return Node{Kind: KindLiteral, Value: v}
}

// TypedLiteral returns a literal with an explicit datatype.
// xsd:string is folded into the plain literal form so both spellings are the
// same term.
func TypedLiteral(v, datatype string) Node {
	if datatype == XSDString {
		datatype = ""
	}
	return Node{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(v, lang string) Node {
	return Node{Kind: KindLiteral, Value: v, Lang: lang}
}

func (n Node) IsIRI() bool     { return n.Kind == KindIRI }
func (n Node) IsBlank() bool   { return n.Kind == KindBlank }
func (n Node) IsLiteral() bool { return n.Kind == KindLiteral }

// IsResource reports whether the node can stand in subject position.
func (n Node) IsResource() bool {
	return n.Kind == KindIRI || n.Kind == KindBlank
}

// IsZero reports whether n is the zero Node.
func (n Node) IsZero() bool {
	return n == Node{}
}

// Key returns the canonical term text in N-Triples form:
//
//	<http://example.org/a>   IRI
//	_:b0                     blank node
//	"text"@en                language-tagged literal
//	"42"^^<http://...#int>   typed literal
//
// Literal values are NFC normalized so that equivalent strings are one term.
func (n Node) Key() string {
	switch n.Kind {
	case KindIRI:
		return "<" + n.Value + ">"
	case KindBlank:
		return "_:" + n.Value
	case KindLiteral:
		q := strconv.Quote(n.CanonicalValue())
		if n.Lang != "" {
			return q + "@" + n.Lang
		}
		if n.Datatype != "" {
			return q + "^^<" + n.Datatype + ">"
		}
		return q
	default:
		return ""
	}
}

// CanonicalValue returns the value as it is stored: NFC normalized for
// literals, unchanged otherwise.
func (n Node) CanonicalValue() string {
	if n.Kind == KindLiteral {
		return norm.NFC.String(n.Value)
	}
	return n.Value
}

// String implements fmt.Stringer.
func (n Node) String() string {
	return n.Key()
}

// Validate checks that the node is well formed and that its key cannot be
// mistaken for another term's.
func (n Node) Validate() error {
	switch n.Kind {
	case KindIRI, KindBlank:
		if n.Value == "" {
			return fmt.Errorf("%s node has an empty value", n.Kind)
		}
		if n.Datatype != "" || n.Lang != "" {
			return fmt.Errorf("%s node %q cannot carry a datatype or language", n.Kind, n.Value)
		}
		if n.Kind == KindIRI {
			return ValidateIRI(n.Value)
		}
		for _, r := range n.Value {
			if isTermBreak(r) {
				return fmt.Errorf("blank node label %q contains %q", n.Value, r)
			}
		}
	case KindLiteral:
		if n.Datatype != "" && n.Lang != "" {
			return fmt.Errorf("literal %q has both a datatype and a language", n.Value)
		}
		if n.Datatype != "" {
			if err := ValidateIRI(n.Datatype); err != nil {
				return fmt.Errorf("literal datatype: %w", err)
			}
		}
		if n.Lang != "" && strings.IndexFunc(n.Lang, isLangBreak) >= 0 {
			return fmt.Errorf("literal %q has malformed language tag %q", n.Value, n.Lang)
		}
	default:
		return fmt.Errorf("node has unknown kind %d", n.Kind)
	}
	return nil
}

// iriExcluded are the ASCII characters RFC 3987 never allows unescaped.
const iriExcluded = "<>\"{}|^`\\"

// ValidateIRI rejects empty IRIs and IRIs holding whitespace, control
// characters or any of <>"{}|^`\.
func ValidateIRI(v string) error {
	if v == "" {
		return fmt.Errorf("IRI is empty")
	}
	for _, r := range v {
		if isTermBreak(r) {
			return fmt.Errorf("IRI %q contains %q", v, r)
		}
	}
	return nil
}

func isTermBreak(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(iriExcluded, r)
}

func isLangBreak(r rune) bool {
	return !(r == '-' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
}
