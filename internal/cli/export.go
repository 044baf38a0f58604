package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/export"
)

type exportOptions struct {
	yes    bool
	dryRun bool
}

func newExportCommand() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <layer>",
		Short: "Validate a plot layer and write its FieldExplorer CSV",
		Long: `Export validates a plot layer and writes it as a FieldExplorer plot file
next to the layer, with the same base name and a .csv extension.

Before anything is checked you are asked to confirm the export; answering
anything but "y" stops without writing. The layer must be a vector layer
in EPSG:4326 within the configured extent, carry "Plot-ID" and "Comments"
attributes, and every plot must be a single polygon with exactly four
corners whose Plot-ID is unique, at most 50 characters long and free of
\ / : * ? " < > |. No two plots may touch or overlap.

The first failed check is reported and the command exits with code 7.
An existing CSV is only replaced when every plot passed.

Use --dry-run to print the CSV to stdout without touching disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the CSV to stdout instead of writing it")
	registerRuleFlags(cmd)

	return cmd
}

func runExport(cmd *cobra.Command, path string, opts *exportOptions) error {
	// 1. Open the layer.
	l, err := loadLayer(path)
	if err != nil {
		return err
	}

	// 2. Build the exporter.
	exOpts := []export.Option{export.WithNotifier(notifierFor(cmd))}
	if !opts.yes && !opts.dryRun {
		exOpts = append(exOpts, export.WithConfirmer(newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())))
	}

	ex := newExporter(cmd, exOpts...)

	// 3. Run.
	if opts.dryRun {
		_, err = ex.DryRun(cmd.Context(), l, cmd.OutOrStdout())
	} else {
		_, err = ex.Run(cmd.Context(), l)
	}

	return exportExit(err)
}
