package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metastore/internal/lifecycle"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	patternFlags
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "List facts matching a pattern",
		Long: `List the facts matching a pattern, sorted canonically. Unset components are
wildcards. Fails when more facts match than max_facts_to_return allows.

Example:
  metastore get --subject urn:a
  metastore get --graph https://w3id.org/metastore/graph/vocabulary --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, cmd)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runGet(opts *GetOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	p, err := opts.pattern(cmd)
	if err != nil {
		return invalidInput(out, err)
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	facts, err := s.app.Engine.Get(commandContext(cmd), p)
	if err != nil {
		return s.out.Fail("get failed", err)
	}
	return s.out.Success(factList(facts))
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Field string
	Limit int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Full-text search over indexed fields",
		Long: `Search the index for entities whose indexed values contain term, best match
first.

Example:
  metastore search climate --field label --limit 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Field, "field", "", "restrict to one index field")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of results")
	return cmd
}

type entityList []string

func (l entityList) String() string {
	if len(l) == 0 {
		return "(no matches)"
	}
	return strings.Join(l, "\n")
}

func runSearch(opts *SearchOptions, term string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	hits, err := s.app.Engine.QueryText(commandContext(cmd), term, opts.Field, opts.Limit)
	if err != nil {
		return s.out.Fail("search failed", err)
	}
	if hits == nil {
		hits = []string{}
	}
	return s.out.Success(entityList(hits))
}

// LifecycleOutput is the rendered lifecycle record of a subject.
type LifecycleOutput struct {
	Subject string `json:"subject"`
	lifecycle.Record
}

func (o LifecycleOutput) String() string {
	return fmt.Sprintf("%s\n  created  %s by %s\n  modified %s by %s",
		o.Subject,
		o.Created.Format(time.RFC3339Nano), o.Creator,
		o.Modified.Format(time.RFC3339Nano), o.Modifier)
}

// NewLifecycleCommand creates the lifecycle command.
func NewLifecycleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifecycle <iri>",
		Short: "Show who created and last modified a subject",
		Long: `Show the lifecycle record of an IRI subject: its creator and creation time,
and the actor and time of its latest change.

Example:
  metastore lifecycle urn:a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLifecycle(opts *RootOptions, iri string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, ok, err := s.app.Engine.Lifecycle(commandContext(cmd), iri)
	if err != nil {
		return s.out.Fail("lifecycle lookup failed", err)
	}
	if !ok {
		if outErr := s.out.Error("NOT_FOUND", fmt.Sprintf("no lifecycle record for %s", iri), nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, fmt.Sprintf("no lifecycle record for %s", iri))
	}
	return s.out.Success(LifecycleOutput{Subject: iri, Record: rec})
}
