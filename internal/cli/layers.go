package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/config"
	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/layer"
	"github.com/hupe1980/fieldexport/internal/logging"
)

// registerRuleFlags adds the validation rule flags shared by every command
// that runs the export pipeline. The flags are bound to config keys of the
// same name by config.Load.
func registerRuleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("allow-duplicate-plot-ids", false, "skip the overlap test between features sharing a Plot-ID")
	f.String("line-ending", config.LineEndingCRLF, "CSV line ending: crlf, lf")
}

// loadLayer opens the layer at path. Failures are runtime errors.
func loadLayer(path string) (layer.Layer, error) {
	l, err := layer.Open(path)
	if err != nil {
		return nil, &ExitError{Code: 1, Err: err}
	}

	return l, nil
}

// newExporter builds an exporter from the configuration carried by cmd.
func newExporter(cmd *cobra.Command, opts ...export.Option) *export.Exporter {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	base := []export.Option{
		export.WithLogger(logging.FromContext(ctx)),
		export.WithRules(export.RulesFromConfig(cfg)),
		export.WithTerminator(cfg.Terminator()),
	}

	return export.New(append(base, opts...)...)
}

// exportExit maps a pipeline error to the process exit code. A declined
// confirmation is not an error.
func exportExit(err error) error {
	if err == nil || errors.Is(err, export.ErrCancelled) {
		return nil
	}

	var ve *export.ValidationError
	if errors.As(err, &ve) {
		return &ExitError{Code: 7, Err: ve}
	}

	return &ExitError{Code: 1, Err: err}
}

// notifierFor returns the terminal notifier for cmd, honouring --no-color
// and --quiet.
func notifierFor(cmd *cobra.Command) *terminalNotifier {
	cfg := config.FromContext(cmd.Context())

	out := cmd.OutOrStdout()
	if cfg.Quiet {
		out = io.Discard
	}

	return newTerminalNotifier(out, cmd.ErrOrStderr(), cfg.NoColor)
}

// printf writes to w, ignoring write errors on terminal output.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
