package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/metastore/internal/fact"
)

// FactInput is one fact in a YAML or JSON fact file. Graph defaults to the
// metadata graph. A subject starting with "_:" is a blank node.
type FactInput struct {
	Graph     string    `yaml:"graph"`
	Subject   string    `yaml:"subject"`
	Predicate string    `yaml:"predicate"`
	Object    NodeInput `yaml:"object"`
}

// NodeInput is an object term. A bare scalar is a plain literal; a mapping
// names exactly one of iri, blank, literal or nil:
//
//	object: Alpha
//	object: {iri: "https://example.org/Dataset"}
//	object: {literal: "42", datatype: "http://www.w3.org/2001/XMLSchema#integer"}
//	object: {literal: "Hallo", lang: de}
//	object: {nil: true}
type NodeInput struct {
	fact.Node
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *NodeInput) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.Node = fact.Literal(value.Value)
		return nil
	}
	var m struct {
		IRI      string  `yaml:"iri"`
		Blank    string  `yaml:"blank"`
		Literal  *string `yaml:"literal"`
		Datatype string  `yaml:"datatype"`
		Lang     string  `yaml:"lang"`
		Nil      bool    `yaml:"nil"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	set := 0
	for _, ok := range []bool{m.IRI != "", m.Blank != "", m.Literal != nil, m.Nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("line %d: object must name exactly one of iri, blank, literal or nil", value.Line)
	}
	switch {
	case m.Nil:
		n.Node = fact.NilNode
	case m.IRI != "":
		n.Node = fact.IRI(m.IRI)
	case m.Blank != "":
		n.Node = fact.Blank(m.Blank)
	case m.Lang != "":
		n.Node = fact.LangLiteral(*m.Literal, m.Lang)
	default:
		n.Node = fact.TypedLiteral(*m.Literal, m.Datatype)
	}
	return nil
}

// parseSubject reads "_:label" as a blank node and anything else as an IRI.
func parseSubject(s string) fact.Node {
	if label, ok := strings.CutPrefix(s, "_:"); ok {
		return fact.Blank(label)
	}
	return fact.IRI(s)
}

// ParseFacts decodes a list of facts. YAML is a superset of JSON, so both
// formats are accepted.
func ParseFacts(data []byte) ([]fact.Fact, error) {
	var in []FactInput
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fact file is empty")
		}
		return nil, fmt.Errorf("parse facts: %w", err)
	}
	out := make([]fact.Fact, 0, len(in))
	for i, f := range in {
		if f.Subject == "" || f.Predicate == "" || f.Object.IsZero() {
			return nil, fmt.Errorf("fact %d: subject, predicate and object are required", i+1)
		}
		out = append(out, fact.New(f.Graph, parseSubject(f.Subject), f.Predicate, f.Object.Node))
	}
	return out, nil
}

// readFacts reads a fact file, or stdin when path is "-".
func readFacts(cmd *cobra.Command, path string) ([]fact.Fact, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	return ParseFacts(data)
}

// patternFlags bind the pattern components of get and delete.
type patternFlags struct {
	graph     string
	subject   string
	predicate string
	objectIRI string
	literal   string
}

func (p *patternFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.graph, "graph", "", "graph IRI (default: metadata graph)")
	cmd.Flags().StringVar(&p.subject, "subject", "", "subject IRI, or _:label for a blank node")
	cmd.Flags().StringVar(&p.predicate, "predicate", "", "predicate IRI")
	cmd.Flags().StringVar(&p.objectIRI, "object-iri", "", "object IRI")
	cmd.Flags().StringVar(&p.literal, "object-literal", "", "object plain literal")
}

func (p *patternFlags) pattern(cmd *cobra.Command) (fact.Pattern, error) {
	if p.objectIRI != "" && cmd.Flags().Changed("object-literal") {
		return fact.Pattern{}, errors.New("--object-iri and --object-literal are mutually exclusive")
	}
	out := fact.Pattern{Graph: p.graph, Predicate: p.predicate}
	if p.subject != "" {
		s := parseSubject(p.subject)
		out.Subject = &s
	}
	switch {
	case p.objectIRI != "":
		o := fact.IRI(p.objectIRI)
		out.Object = &o
	case cmd.Flags().Changed("object-literal"):
		o := fact.Literal(p.literal)
		out.Object = &o
	}
	return out, nil
}

// factList renders one fact per line in text output.
type factList []fact.Fact

func (l factList) String() string {
	if len(l) == 0 {
		return "(no facts)"
	}
	var b strings.Builder
	for i, f := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.String())
	}
	return b.String()
}
