package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/config"
	"github.com/hupe1980/fieldexport/internal/diff"
	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
	"github.com/hupe1980/fieldexport/internal/logging"
	"github.com/hupe1980/fieldexport/internal/watch"
)

type watchOptions struct {
	debounce time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <layer>",
		Short: "Re-export a layer whenever it changes",
		Long: `Watch exports a plot layer once and again every time the layer file or
the config file changes, without asking for confirmation.

File changes are debounced to avoid rapid re-runs. Each run prints one
status line: the number of plots written, or the kind of the first
failed check. Plots added, removed or changed since the previous run are
listed below it.

Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "debounce interval for file changes")
	registerRuleFlags(cmd)

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, opts *watchOptions) error {
	cfg := config.FromContext(ctx)

	// Track the previous records to report plot changes across runs.
	var prev []fieldexplorer.PlotRecord

	runFn := func(fnCtx context.Context) (*watch.RunResult, error) {
		// The config file is watched too; pick up its changes.
		runCfg, err := config.Load(cmd, cfg.ConfigFile)
		if err != nil {
			return nil, err
		}

		l, err := loadLayer(path)
		if err != nil {
			return nil, err
		}

		ex := export.New(
			export.WithLogger(logging.FromContext(ctx)),
			export.WithRules(export.RulesFromConfig(runCfg)),
			export.WithTerminator(runCfg.Terminator()),
			export.WithNotifier(newTerminalNotifier(io.Discard, cmd.ErrOrStderr(), runCfg.NoColor)),
		)

		res, err := ex.Run(fnCtx, l)
		if err != nil {
			return nil, err
		}

		var changes diff.Summary
		if prev != nil {
			changes = diff.Summarize(prev, res.Records)
		}

		prev = res.Records

		return &watch.RunResult{
			Rows:       res.Rows,
			OutputPath: res.Path,
			Changes:    changes,
		}, nil
	}

	watchOpts := watch.Options{
		LayerPath: path,
		Debounce:  opts.debounce,
		Logger:    logging.FromContext(ctx),
		Out:       cmd.ErrOrStderr(),
	}

	if cfg.ConfigFile != "" {
		watchOpts.ExtraFiles = []string{cfg.ConfigFile}
	}

	if err := watch.Run(ctx, watchOpts, runFn); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}
