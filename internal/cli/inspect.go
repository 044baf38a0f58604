package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/layer"
)

type inspectOptions struct {
	format string
}

// inspectResult is the structured output of the inspect command.
type inspectResult struct {
	Name       string        `json:"name"`
	Source     string        `json:"source"`
	Kind       string        `json:"kind"`
	CRS        string        `json:"crs"`
	Extent     *layer.Rect   `json:"extent,omitempty"`
	Attributes []string      `json:"attributes"`
	Output     string        `json:"output"`
	Features   []featureInfo `json:"features"`
}

type featureInfo struct {
	ID       int    `json:"id"`
	PlotID   string `json:"plotId"`
	Geometry string `json:"geometry"`
	// Vertices counts the polygon vertices without the closing repeat, or
	// -1 when the geometry is not a single polygon.
	Vertices int `json:"vertices"`
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <layer>",
		Short: "Show what a layer contains",
		Long: `Inspect prints a layer's name, kind, CRS, extent and attributes, and a
table of its features with Plot-ID, geometry type and vertex count.

Nothing is validated; use this to find the plot that a failed export
complains about.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table, json, yaml")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, opts *inspectOptions) error {
	// 1. Open the layer.
	l, err := loadLayer(path)
	if err != nil {
		return err
	}

	// 2. Build result.
	result := buildInspectResult(l)

	// 3. Render output.
	w := cmd.OutOrStdout()

	switch opts.format {
	case "json":
		return renderJSON(w, result)
	case "yaml":
		return renderYAML(w, result)
	case "table":
		renderTable(w, result)
		return nil
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unknown format %q: expected table, json, yaml", opts.format)}
	}
}

func buildInspectResult(l layer.Layer) inspectResult {
	result := inspectResult{
		Name:       l.Name(),
		Source:     l.SourcePath(),
		Kind:       l.Kind().String(),
		CRS:        l.CRSAuthorityCode(),
		Attributes: l.AttributeNames(),
		Output:     export.CSVPath(l.SourcePath()),
	}

	if ext := l.Extent(); !ext.IsEmpty() {
		result.Extent = &ext
	}

	for f := range l.Features() {
		info := featureInfo{
			ID:       f.ID(),
			Geometry: f.Geometry().TypeName(),
			Vertices: -1,
		}

		if id, err := f.Text(export.AttrPlotID); err == nil {
			info.PlotID = id
		}

		if p, err := f.Geometry().SinglePolygon(); err == nil {
			info.Vertices = len(p.Vertices()) - len(p.Rings)
		}

		result.Features = append(result.Features, info)
	}

	return result
}

func renderJSON(w io.Writer, result inspectResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func renderYAML(w io.Writer, result inspectResult) error {
	data, err := sigsyaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}

	_, err = w.Write(data)

	return err
}

func renderTable(w io.Writer, result inspectResult) {
	printf(w, "\n=== Layer: %s ===\n", result.Name)
	printf(w, "Source:     %s\n", result.Source)
	printf(w, "Kind:       %s\n", result.Kind)

	if result.Kind != layer.KindVector.String() {
		return
	}

	extent := "Empty"
	if result.Extent != nil {
		extent = result.Extent.String()
	}

	printf(w, "CRS:        %s\n", result.CRS)
	printf(w, "Extent:     %s\n", extent)
	printf(w, "Attributes: %s\n", strings.Join(result.Attributes, ", "))
	printf(w, "Output:     %s\n", result.Output)

	printf(w, "\n--- Features (%d) ---\n", len(result.Features))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPLOT-ID\tGEOMETRY\tVERTICES")

	for _, f := range result.Features {
		vertices := "-"
		if f.Vertices >= 0 {
			vertices = fmt.Sprint(f.Vertices)
		}

		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.ID, f.PlotID, f.Geometry, vertices)
	}

	_ = tw.Flush()
}
