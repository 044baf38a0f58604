package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
	"github.com/hupe1980/fieldexport/internal/version"
)

const infoText = `FieldExplorer Information

Version number: %s

This application is used to generate plot files for the application in the FieldExplorer.

Please note:
- Use %s as coordinate system,
- Ensure no plots are touching or overlapping.
- Plots are required to be defined with 4 corners.
- Please ensure the attributes "%s" and "%s" are used for identification of the plots.
- A Plot-ID cannot contain any of the following characters:   %s
- Maximum length of a Plot-ID is %d characters

For questions or comments to this plugin, please contact us via info@phenokey.com
`

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the FieldExplorer plot file rules",
		Args:  cobra.NoArgs,
		// Override parent PersistentPreRunE — info needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), infoText,
				version.FormatVersion,
				export.RequiredCRS,
				export.AttrPlotID, export.AttrComments,
				forbiddenChars(),
				fieldexplorer.MaxPlotIDLength,
			)

			return err
		},
	}
}

func forbiddenChars() string {
	var s string

	for i, c := range fieldexplorer.ForbiddenPlotIDChars {
		if i > 0 {
			s += " "
		}

		s += string(c)
	}

	return s
}
