package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metastore/internal/fact"
	"github.com/roach88/metastore/internal/recovery"
	"github.com/roach88/metastore/internal/txlog"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	From  int64
	Limit int
}

// LogEntryOutput is one rendered log entry.
type LogEntryOutput struct {
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Actor     string      `json:"actor"`
	Removed   []fact.Fact `json:"removed"`
	Added     []fact.Fact `json:"added"`
}

type logListing []LogEntryOutput

func (l logListing) String() string {
	if len(l) == 0 {
		return "(log is empty)"
	}
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#%d %s %s (-%d +%d)", e.Seq, e.Timestamp.Format(time.RFC3339Nano), e.Actor, len(e.Removed), len(e.Added))
	}
	return b.String()
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print transaction log entries",
		Long: `Print transaction log entries in sequence order, starting at --from. The log
is read directly; the store is not opened.

Exit codes:
  0 - Entries printed
  2 - The log cannot be opened
  3 - An entry is corrupt

Example:
  metastore log --from 120 --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	l, err := txlog.Open(cfg.Log.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log", err)
	}
	defer l.Close()

	entries := logListing{}
	for e, err := range l.ReadFrom(commandContext(cmd), opts.From) {
		if err != nil {
			if txlog.IsCorruptEntry(err) {
				if outErr := out.Error(recovery.ErrCodeRecoveryFailed, err.Error(), nil); outErr != nil {
					return outErr
				}
				return WrapExitError(ExitFatal, "log is unreadable", err)
			}
			return WrapExitError(ExitCommandError, "failed to read log", err)
		}
		entries = append(entries, LogEntryOutput{
			Seq:       e.Seq,
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Removed:   e.ChangeSet.Remove.Facts(),
			Added:     e.ChangeSet.Add.Facts(),
		})
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}
	}
	return out.Success(entries)
}

// RecoverOutput reports a recovery run.
type RecoverOutput struct {
	Entries  int    `json:"entries"`
	Head     int64  `json:"head"`
	Duration string `json:"duration"`
}

func (o RecoverOutput) String() string {
	return fmt.Sprintf("replayed %d entries up to seq %d in %s", o.Entries, o.Head, o.Duration)
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Rebuild the store and index from the log",
		Long: `Empty the primary store and the search index and rebuild both by replaying
the transaction log from the beginning. Startup runs the same procedure
automatically when the store is missing or empty.

Exit codes:
  0 - Recovery finished
  3 - Recovery failed; the store must not be used

Example:
  metastore recover --config metastore.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(rootOpts, cmd)
		},
	}
	return cmd
}

// ReasonRequested marks a recovery started from the command line.
const ReasonRequested recovery.Reason = "requested"

func runRecover(opts *RootOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.app.Recover(commandContext(cmd), ReasonRequested)
	if err != nil {
		return s.out.Fail("recovery failed", err)
	}
	return s.out.Success(RecoverOutput{
		Entries:  stats.Entries,
		Head:     stats.Head,
		Duration: stats.Duration.String(),
	})
}
