// Package cli implements the cobra command tree for fieldexport.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/config"
	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		// Validation failures were already reported by the notifier.
		var ve *export.ValidationError
		if !errors.As(err, &ve) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "fieldexport",
		Short: "Validate plot layers and export them as FieldExplorer CSV files",
		Long: `fieldexport validates a polygon layer of field trial plots and writes
it as a FieldExplorer plot file.

Every plot must be a single four-cornered polygon in EPSG:4326 inside
The Netherlands, carry a unique "Plot-ID" and a "Comments" attribute, and
must not touch or overlap any other plot. The CSV is written next to the
layer file with the same base name.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
			)

			return nil
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .fieldexport.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	// Register subcommands.
	cmd.AddCommand(
		newVersionCommand(),
		newExportCommand(),
		newValidateCommand(),
		newInspectCommand(),
		newDiffCommand(),
		newWatchCommand(),
		newInfoCommand(),
		newCompletionCommand(),
	)

	return cmd
}
