package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/config"
	"github.com/hupe1980/fieldexport/internal/diff"
	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
)

type diffOptions struct {
	// Existing plot file to diff against.
	existing string

	// Output format: "unified" (default), "json".
	format string
}

// diffReport is the JSON output of the diff command.
type diffReport struct {
	Existing       string       `json:"existing"`
	HasDifferences bool         `json:"hasDifferences"`
	Plots          diff.Summary `json:"plots"`
	Unified        string       `json:"unified,omitempty"`
}

func newDiffCommand() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff <layer>",
		Short: "Compare the CSV on disk with the one an export would write",
		Long: `Diff validates a plot layer, renders the CSV an export would write and
compares it with the plot file already on disk, line by line and by
Plot-ID.

The existing file defaults to the export target next to the layer; use
--existing to compare against another file. A missing existing file
counts as empty. Line endings are ignored.

Exit codes:
  0  Diff printed (with or without differences)
  1  Error
  2  Invalid arguments
  7  The layer does not pass validation`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.existing, "existing", "", "plot file to diff against (default: the export target)")
	f.StringVar(&opts.format, "format", "unified", "output format: unified, json")
	registerRuleFlags(cmd)

	return cmd
}

func runDiff(cmd *cobra.Command, path string, opts *diffOptions) error {
	if opts.format != "unified" && opts.format != "json" {
		return &ExitError{Code: 2, Err: fmt.Errorf("unknown format %q: expected unified, json", opts.format)}
	}

	// 1. Open the layer and render the proposed plot file.
	l, err := loadLayer(path)
	if err != nil {
		return err
	}

	var proposed bytes.Buffer

	res, err := newExporter(cmd, export.WithNotifier(notifierFor(cmd))).DryRun(cmd.Context(), l, &proposed)
	if err != nil {
		return exportExit(err)
	}

	// 2. Load the existing plot file.
	existingPath := opts.existing
	if existingPath == "" {
		existingPath = res.Path
	}

	existing, err := os.ReadFile(existingPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ExitError{Code: 1, Err: fmt.Errorf("reading existing plot file: %w", err)}
	}

	var oldRecs []fieldexplorer.PlotRecord
	if len(existing) > 0 {
		oldRecs, err = fieldexplorer.Read(bytes.NewReader(existing))
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("parsing %s: %w", existingPath, err)}
		}
	}

	// 3. Diff.
	diffOpts := diff.DefaultOptions()
	diffOpts.OldLabel = existingPath

	result, err := diff.Compute(string(existing), proposed.String(), diffOpts)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	summary := diff.Summarize(oldRecs, res.Records)

	// 4. Render.
	w := cmd.OutOrStdout()

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(diffReport{
			Existing:       existingPath,
			HasDifferences: result.HasDifferences,
			Plots:          summary,
			Unified:        result.Unified,
		})
	}

	diff.Write(w, result, config.FromContext(cmd.Context()).NoColor)

	if !summary.Empty() {
		printf(w, "\nPlots: %s\n", summary)
		printIDs(w, "added", summary.Added)
		printIDs(w, "removed", summary.Removed)
		printIDs(w, "changed", summary.Changed)
	}

	return nil
}

func printIDs(w io.Writer, label string, ids []string) {
	if len(ids) == 0 {
		return
	}

	printf(w, "  %-8s %s\n", label+":", strings.Join(ids, ", "))
}
