package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/fieldexport/internal/export"
)

type validateOptions struct {
	format string
}

func newValidateCommand() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <layer>",
		Short: "Check a plot layer without writing the CSV",
		Long: `Validate runs every check of export against a plot layer, including
whether the layer directory is writable, but neither asks for confirmation
nor writes the CSV.

Returns exit code 7 on the first failed check. With --format json or yaml
the report also lists the plot records that would be written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "report format: text, json, yaml")
	registerRuleFlags(cmd)

	return cmd
}

func runValidate(cmd *cobra.Command, path string, opts *validateOptions) error {
	switch opts.format {
	case "text", "json", "yaml":
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unsupported format %q: must be one of text, json, yaml", opts.format)}
	}

	// 1. Open the layer.
	l, err := loadLayer(path)
	if err != nil {
		return err
	}

	// 2. Run every gate; failures are reported below, not by a notifier.
	res, err := newExporter(cmd).Validate(cmd.Context(), l)

	var ve *export.ValidationError
	if err != nil && !errors.As(err, &ve) {
		return exportExit(err)
	}

	// 3. Report.
	if err := writeValidateReport(cmd, res, opts.format); err != nil {
		return err
	}

	return exportExit(err)
}

func writeValidateReport(cmd *cobra.Command, res *export.Result, format string) error {
	w := cmd.OutOrStdout()

	switch format {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}

		printf(w, "%s\n", data)
	case "yaml":
		data, err := yaml.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}

		printf(w, "%s", data)
	default:
		n := notifierFor(cmd)
		if res.Failure != nil {
			n.Error(fmt.Sprintf("%s: %s", res.Failure.Kind, res.Failure.Message))
			return nil
		}

		n.Success(fmt.Sprintf("Layer %q is valid: %d plots would be written to %s", res.Layer, res.Rows, res.Path), 0)
	}

	return nil
}
