package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/metastore/internal/app"
	"github.com/roach88/metastore/internal/config"
	"github.com/roach88/metastore/internal/events"
)

// Error codes reported for failures that are not component errors.
const (
	ErrCodeGeneric      = "ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// AppOptions are passed to app.Open (for testing).
	AppOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the metastore CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metastore",
		Short: "Versioned multi-graph fact store",
		Long: `metastore keeps metadata as facts in named graphs. Every accepted change is
validated, written to the primary store, appended to the transaction log and
propagated to the search index.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewPatchCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewAuthorizeCommand(opts))
	cmd.AddCommand(NewPermissionCommand(opts))
	cmd.AddCommand(NewPermissionsCommand(opts))
	cmd.AddCommand(NewLifecycleCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to stderr so that stdout stays parseable. Only warnings
// and errors are shown unless --verbose is set.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// session is an open App plus the command's output settings.
type session struct {
	app    *app.App
	out    *OutputFormatter
	logger *slog.Logger
	cancel context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
	if err := s.app.Close(); err != nil {
		s.logger.Error("error closing metastore", "error", err)
	}
}

// openSession loads the configuration, opens the App (running recovery
// when needed) and starts draining events to the log.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.logger(cmd)
	out := o.formatter(cmd)

	ctx := commandContext(cmd)
	appOpts := append([]app.Option{app.WithLogger(logger)}, o.AppOptions...)
	a, err := app.Open(ctx, cfg, appOpts...)
	if err != nil {
		return nil, out.Fail("failed to open metastore", err)
	}
	if a.Recovered != "" {
		out.VerboseLog("recovered store: %s", a.Recovered)
	}

	drainCtx, cancel := context.WithCancel(ctx)
	go events.Drain(drainCtx, a.Emitter.Events(), logger.With("component", "events"))

	return &session{app: a, out: out, logger: logger, cancel: cancel}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// invalidInput reports a usage problem detected before any component runs.
func invalidInput(out *OutputFormatter, err error) error {
	if outErr := out.Error(ErrCodeInvalidInput, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "invalid input", err)
}
