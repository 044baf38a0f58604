// Package fieldexport provides a public Go API for validating plot layers
// and writing them as FieldExplorer plot files.
//
// This package exposes the fieldexport pipeline as a library, allowing
// programmatic use without the CLI.
//
// Basic usage:
//
//	result, err := fieldexport.Export(ctx, "trial/plots.geojson")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("wrote", result.Rows, "plots to", result.Path)
//
// With options:
//
//	result, err := fieldexport.Export(ctx, "trial/plots.geojson",
//	    fieldexport.WithLogger(logger),
//	    fieldexport.WithLineEnding("\n"),
//	)
//
// A failed check is returned as a *ValidationError; use [KindOf] to get its
// kind.
package fieldexport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/fieldexport/internal/export"
	"github.com/hupe1980/fieldexport/internal/layer"
	"github.com/hupe1980/fieldexport/internal/logging"
	"github.com/hupe1980/fieldexport/internal/output"
)

type (
	// Result describes a completed run.
	Result = export.Result
	// ValidationError is the first check a layer failed.
	ValidationError = export.ValidationError
	// Kind classifies a ValidationError.
	Kind = export.Kind
	// Confirmer asks the user whether to export.
	Confirmer = export.Confirmer
	// Notifier receives the outcome of an export.
	Notifier = export.Notifier
	// Extent is a rectangle in degrees longitude/latitude.
	Extent = layer.Rect
)

// Validation failure kinds, in pipeline order.
const (
	KindNotAVectorLayer      = export.KindNotAVectorLayer
	KindDirectoryNotWritable = export.KindDirectoryNotWritable
	KindWrongCRS             = export.KindWrongCRS
	KindExtentOutOfBounds    = export.KindExtentOutOfBounds
	KindMissingAttributes    = export.KindMissingAttributes
	KindDuplicatePlotID      = export.KindDuplicatePlotID
	KindFeatureIntersection  = export.KindFeatureIntersection
	KindGeometryNotSingle    = export.KindGeometryNotSingle
	KindTooManyVertices      = export.KindTooManyVertices
	KindTooFewVertices       = export.KindTooFewVertices
	KindPlotIDTooLong        = export.KindPlotIDTooLong
	KindPlotIDForbiddenChar  = export.KindPlotIDForbiddenChar
)

// ErrCancelled is returned by Export when the Confirmer declined.
var ErrCancelled = export.ErrCancelled

// KindOf returns the kind of a validation failure in err's chain.
func KindOf(err error) (Kind, bool) { return export.KindOf(err) }

// Option configures the pipeline.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	logger                *slog.Logger
	confirmer             Confirmer
	notifier              Notifier
	extent                *Extent
	allowDuplicatePlotIDs bool
	terminator            string
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithConfirmer asks c before exporting. By default every export is
// confirmed.
func WithConfirmer(c Confirmer) Option { return func(o *options) { o.confirmer = c } }

// WithNotifier reports outcomes to n.
func WithNotifier(n Notifier) Option { return func(o *options) { o.notifier = n } }

// WithExtent replaces the extent of The Netherlands.
func WithExtent(e Extent) Option { return func(o *options) { o.extent = &e } }

// WithAllowDuplicatePlotIDs skips the overlap test between features that
// share a Plot-ID instead of rejecting them.
func WithAllowDuplicatePlotIDs() Option {
	return func(o *options) { o.allowDuplicatePlotIDs = true }
}

// WithLineEnding sets the CSV row terminator (default "\r\n").
func WithLineEnding(term string) Option { return func(o *options) { o.terminator = term } }

func newExporter(opts []Option) (*export.Exporter, error) {
	o := &options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	rules := export.DefaultRules()
	rules.AllowDuplicatePlotIDs = o.allowDuplicatePlotIDs

	if o.extent != nil {
		if o.extent.IsEmpty() {
			return nil, errors.New("extent must not be empty")
		}

		rules.Extent = *o.extent
		rules.ExtentName = "the configured extent"
	}

	exOpts := []export.Option{
		export.WithLogger(o.logger),
		export.WithRules(rules),
		export.WithFileSystem(output.NewDisk(output.WithLogger(o.logger))),
	}

	if o.confirmer != nil {
		exOpts = append(exOpts, export.WithConfirmer(o.confirmer))
	}

	if o.notifier != nil {
		exOpts = append(exOpts, export.WithNotifier(o.notifier))
	}

	if o.terminator != "" {
		exOpts = append(exOpts, export.WithTerminator(o.terminator))
	}

	return export.New(exOpts...), nil
}

func open(path string) (layer.Layer, error) {
	if path == "" {
		return nil, errors.New("layer path must not be empty")
	}

	l, err := layer.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading layer: %w", err)
	}

	return l, nil
}

// Export validates the layer at path and writes its plot file next to it.
func Export(ctx context.Context, path string, opts ...Option) (*Result, error) {
	l, err := open(path)
	if err != nil {
		return nil, err
	}

	ex, err := newExporter(opts)
	if err != nil {
		return nil, err
	}

	return ex.Run(ctx, l)
}

// Validate runs every check of Export without confirming or writing.
func Validate(ctx context.Context, path string, opts ...Option) (*Result, error) {
	l, err := open(path)
	if err != nil {
		return nil, err
	}

	ex, err := newExporter(opts)
	if err != nil {
		return nil, err
	}

	return ex.Validate(ctx, l)
}

// Render validates the layer at path and writes its plot file to w.
func Render(ctx context.Context, path string, w io.Writer, opts ...Option) (*Result, error) {
	l, err := open(path)
	if err != nil {
		return nil, err
	}

	ex, err := newExporter(opts)
	if err != nil {
		return nil, err
	}

	return ex.DryRun(ctx, l, w)
}
