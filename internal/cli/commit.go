package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metastore/internal/engine"
	"github.com/roach88/metastore/internal/fact"
)

// CommitOptions holds flags for put, patch and delete.
type CommitOptions struct {
	*RootOptions
	Actor string
	File  string
}

// CommitOutput is the rendered result of a commit.
type CommitOutput struct {
	Seq       int64       `json:"seq"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Removed   []fact.Fact `json:"removed"`
	Added     []fact.Fact `json:"added"`
}

func newCommitOutput(res engine.Result) CommitOutput {
	out := CommitOutput{
		Seq:     res.Seq,
		Removed: res.ChangeSet.Remove.Facts(),
		Added:   res.ChangeSet.Add.Facts(),
	}
	if !res.Noop() {
		ts := res.Timestamp
		out.Timestamp = &ts
	}
	return out
}

func (o CommitOutput) String() string {
	if o.Seq == 0 {
		return "no change"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "committed seq %d at %s (-%d +%d)", o.Seq, o.Timestamp.Format(time.RFC3339Nano), len(o.Removed), len(o.Added))
	for _, f := range o.Removed {
		b.WriteString("\n- " + f.String())
	}
	for _, f := range o.Added {
		b.WriteString("\n+ " + f.String())
	}
	return b.String()
}

func bindCommitFlags(cmd *cobra.Command, opts *CommitOptions, withFile bool) {
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "identity the change is made for (required)")
	_ = cmd.MarkFlagRequired("actor")
	if withFile {
		cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "YAML or JSON fact file, - for stdin")
	}
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Add facts",
		Long: `Add the facts in a fact file. Facts without a graph go to the metadata graph.

Example:
  metastore put --actor alice -f facts.yaml
  echo '[{subject: "urn:a", predicate: "http://www.w3.org/2000/01/rdf-schema#label", object: Alpha}]' | metastore put --actor alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileCommit(opts, cmd, (*engine.Engine).Put)
		},
	}
	bindCommitFlags(cmd, opts, true)
	return cmd
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Replace property values",
		Long: `Replace the current values of every (subject, predicate) named in a fact file
with the values given. An object of {nil: true} clears the property.
Blank-node subjects are added to, never replaced.

Example:
  metastore patch --actor alice -f relabel.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileCommit(opts, cmd, (*engine.Engine).Patch)
		},
	}
	bindCommitFlags(cmd, opts, true)
	return cmd
}

type commitFunc func(e *engine.Engine, ctx context.Context, actor string, facts []fact.Fact) (engine.Result, error)

func runFileCommit(opts *CommitOptions, cmd *cobra.Command, commit commitFunc) error {
	out := opts.formatter(cmd)
	facts, err := readFacts(cmd, opts.File)
	if err != nil {
		return invalidInput(out, err)
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := commit(s.app.Engine, commandContext(cmd), opts.Actor, facts)
	if err != nil {
		return s.out.Fail("commit failed", err)
	}
	return s.out.Success(newCommitOutput(res))
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	CommitOptions
	patternFlags
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{CommitOptions: CommitOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove every fact matching a pattern",
		Long: `Remove every fact matching a pattern. Unset components are wildcards; the
graph defaults to the metadata graph.

Example:
  metastore delete --actor alice --subject urn:a --predicate http://www.w3.org/2000/01/rdf-schema#comment`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, cmd)
		},
	}
	bindCommitFlags(cmd, &opts.CommitOptions, false)
	opts.bind(cmd)
	return cmd
}

func runDelete(opts *DeleteOptions, cmd *cobra.Command) error {
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

	res, err := s.app.Engine.Delete(commandContext(cmd), opts.Actor, p)
	if err != nil {
		return s.out.Fail("delete failed", err)
	}
	return s.out.Success(newCommitOutput(res))
}
