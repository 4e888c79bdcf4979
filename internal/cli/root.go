// Package cli implements the contracttape command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/contracttape/internal/config"
	"github.com/roach88/contracttape/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the contracttape CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "contracttape",
		Short: "contracttape - recorded API contracts",
		Long: `Inspect, compare and promote recorded HTTP traffic.

Recordings are JSON files of interaction sets keyed by test case and input
hash. contracttape diffs recordings structurally and grades the difference
as none, patch, minor or major.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultFile+" if present)")

	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewPromoteCommand(opts))
	cmd.AddCommand(NewLeaksCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// setup loads configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, closer, err := logging.New(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure logging", err)
	}

	o.cfg, o.logger, o.closer = cfg, logger, closer
	return nil
}

func (o *RootOptions) close() error {
	if o.closer == nil {
		return nil
	}
	err := o.closer.Close()
	o.closer = nil
	return err
}

// Config returns the loaded configuration, or defaults when the command
// runs outside the root command.
func (o *RootOptions) Config() *config.Config {
	if o.cfg == nil {
		o.cfg = &config.Config{Fixtures: "recordings", Log: config.LogConfig{Level: "info", Format: "text"}}
	}
	return o.cfg
}

// Logger returns the configured logger, or one that discards everything.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
