// Package export validates a plot layer and writes it as a FieldExplorer
// plot file.
//
// An export runs as a fixed sequence of gates. Layer-level checks come
// first, then every pair of features is tested for overlap, then every
// feature is reduced to four clockwise corners and streamed to the output.
// The first failing gate stops the run and is reported exactly once through
// the [Notifier]; the target file is only replaced when every feature
// passed.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
	"github.com/hupe1980/fieldexport/internal/layer"
	"github.com/hupe1980/fieldexport/internal/logging"
	"github.com/hupe1980/fieldexport/internal/output"
)

// Title is the dialog title of confirmations.
const Title = "FieldExplorer NL"

// SuccessDuration is how long the success notification stays visible.
const SuccessDuration = 15 * time.Second

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(title, message string) (bool, error)
}

// Notifier shows the outcome of an export to the user.
type Notifier interface {
	Error(message string)
	Success(message string, duration time.Duration)
}

// FileSystem is the file access the exporter needs.
type FileSystem interface {
	IsWritable(dir string) bool
	Create(path string) (output.Sink, error)
}

// AutoConfirm answers every confirmation with yes.
type AutoConfirm struct{}

// Confirm always returns true.
func (AutoConfirm) Confirm(string, string) (bool, error) { return true, nil }

// NopNotifier drops all notifications.
type NopNotifier struct{}

// Error does nothing.
func (NopNotifier) Error(string) {}

// Success does nothing.
func (NopNotifier) Success(string, time.Duration) {}

// Result describes a completed run.
type Result struct {
	Layer   string                     `json:"layer"           yaml:"layer"`
	Path    string                     `json:"path"            yaml:"path"`
	Rows    int                        `json:"rows"            yaml:"rows"`
	Records []fieldexplorer.PlotRecord `json:"records"         yaml:"records"`
	Written bool                       `json:"written"         yaml:"written"`
	Failure *ValidationError           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Exporter runs the validation and export pipeline.
type Exporter struct {
	logger     *slog.Logger
	confirmer  Confirmer
	notifier   Notifier
	fs         FileSystem
	rules      Rules
	terminator string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger. Without it the logger is taken from the
// context of each run.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithConfirmer sets who confirms the export. The default confirms
// automatically.
func WithConfirmer(c Confirmer) Option {
	return func(e *Exporter) {
		e.confirmer = c
	}
}

// WithNotifier sets where outcomes are reported. The default drops them.
func WithNotifier(n Notifier) Option {
	return func(e *Exporter) {
		e.notifier = n
	}
}

// WithFileSystem replaces the local disk.
func WithFileSystem(fs FileSystem) Option {
	return func(e *Exporter) {
		e.fs = fs
	}
}

// WithRules overrides the default validation rules.
func WithRules(r Rules) Option {
	return func(e *Exporter) {
		e.rules = r
	}
}

// WithTerminator sets the CSV line terminator.
func WithTerminator(term string) Option {
	return func(e *Exporter) {
		e.terminator = term
	}
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		confirmer:  AutoConfirm{},
		notifier:   NopNotifier{},
		fs:         output.NewDisk(),
		rules:      DefaultRules(),
		terminator: fieldexplorer.CRLF,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CSVPath returns the plot file path for a layer source: the same directory
// and base name with a .csv extension. Provider options after a "|" are
// ignored.
func CSVPath(source string) string {
	source, _, _ = strings.Cut(source, "|")
	dir, file := filepath.Split(source)

	return filepath.Join(dir, strings.TrimSuffix(file, filepath.Ext(file))+".csv")
}

// mode selects which stages of the pipeline run.
type mode struct {
	confirm       bool
	checkWritable bool
	publish       bool
	sink          func(path string) (output.Sink, error)
}

// Run asks for confirmation, validates l and writes its plot file next to
// the layer source. A declined confirmation returns ErrCancelled.
func (e *Exporter) Run(ctx context.Context, l layer.Layer) (*Result, error) {
	return e.run(ctx, l, mode{confirm: true, checkWritable: true, publish: true, sink: e.fs.Create})
}

// DryRun validates l and writes the plot file to w instead of disk.
func (e *Exporter) DryRun(ctx context.Context, l layer.Layer, w io.Writer) (*Result, error) {
	return e.run(ctx, l, mode{sink: func(string) (output.Sink, error) {
		return output.NewStdoutSink(w), nil
	}})
}

// Validate runs every gate of Run except confirmation and writing. The
// returned result carries the plot records that would be written.
func (e *Exporter) Validate(ctx context.Context, l layer.Layer) (*Result, error) {
	return e.run(ctx, l, mode{checkWritable: true})
}

func (e *Exporter) run(ctx context.Context, l layer.Layer, m mode) (*Result, error) {
	logger := e.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	logger = logger.With(slog.String("layer", l.Name()))

	res := &Result{Layer: l.Name(), Path: CSVPath(l.SourcePath())}

	fail := func(ve *ValidationError) (*Result, error) {
		ve.Layer = l.Name()
		res.Failure = ve
		logger.Debug("validation failed", slog.String("kind", string(ve.Kind)))
		e.notifier.Error(ve.Message)

		return res, ve
	}

	// 1. Only vector layers hold plots.
	if l.Kind() != layer.KindVector {
		return fail(&ValidationError{
			Kind: KindNotAVectorLayer,
			Message: fmt.Sprintf("The active layer \"%s\" is NOT a vector layer containing plot data.\n"+
				"Please provide a polygon layer.", l.Name()),
		})
	}

	// 2. Confirm.
	if m.confirm {
		ok, err := e.confirmer.Confirm(Title,
			fmt.Sprintf("Save current active layer \"%s\" to FieldExplorer CSV?", l.Name()))
		if err != nil {
			return nil, fmt.Errorf("asking for confirmation: %w", err)
		}

		if !ok {
			logger.Debug("export declined")
			return nil, ErrCancelled
		}
	}

	// 3. The plot file goes next to the layer.
	dir := filepath.Dir(res.Path)
	if m.checkWritable && !e.fs.IsWritable(dir) {
		return fail(&ValidationError{
			Kind: KindDirectoryNotWritable,
			Message: fmt.Sprintf("The data directory \"%s\"\nis not writable, will not be able to write a csv there.",
				dir),
		})
	}

	if err := e.checkLayer(l); err != nil {
		return fail(err)
	}

	logger.Debug("layer checks passed", slog.String("crs", l.CRSAuthorityCode()))

	// 7. No two plots may touch or overlap.
	features, err := e.checkOverlap(ctx, l)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return fail(ve)
		}

		return nil, err
	}

	logger.Debug("overlap check passed", slog.Int("features", len(features)))

	// 8. Extract and write every plot.
	var (
		sink output.Sink
		fw   *fieldexplorer.Writer
	)

	if m.sink != nil {
		sink, err = m.sink(res.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", res.Path, err)
		}
		defer sink.Close()

		logger.Info("starting to write FieldExplorer CSV",
			slog.String("file", filepath.Base(l.SourcePath())),
			slog.String("dir", dir),
		)

		fw = fieldexplorer.NewWriter(sink, fieldexplorer.WithTerminator(e.terminator))
		if err := fw.WriteHeader(); err != nil {
			return nil, err
		}
	}

	for _, f := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, ve := e.extract(f)
		if ve != nil {
			return fail(ve)
		}

		res.Records = append(res.Records, rec)

		if fw != nil {
			if err := fw.Write(rec); err != nil {
				return nil, err
			}
		}
	}

	res.Rows = len(res.Records)

	if fw == nil {
		return res, nil
	}

	if err := fw.Flush(); err != nil {
		return nil, err
	}

	if err := sink.Commit(); err != nil {
		return nil, fmt.Errorf("writing %s: %w", res.Path, err)
	}

	if m.publish {
		res.Written = true

		logger.Info("plot file written", slog.String("path", res.Path), slog.Int("rows", res.Rows))
		e.notifier.Success("Successfully wrote FieldExplorer CSV file to:\n"+res.Path, SuccessDuration)
	}

	return res, nil
}

// checkLayer runs the CRS, extent and attribute gates.
func (e *Exporter) checkLayer(l layer.Layer) *ValidationError {
	// 4. Coordinates must be WGS 84 latitude/longitude.
	if crs := l.CRSAuthorityCode(); crs != RequiredCRS {
		return &ValidationError{
			Kind: KindWrongCRS,
			Message: fmt.Sprintf("The layer should have %s as crs, but is: \"%s\".\n"+
				"Please provide a layer in %s (lat lon coordinates).", RequiredCRS, crs, RequiredCRS),
		}
	}

	// 5. The whole layer must lie inside the reference extent.
	if ext := l.Extent(); !e.rules.Extent.Contains(ext) {
		return &ValidationError{
			Kind: KindExtentOutOfBounds,
			Message: fmt.Sprintf("The data/layer extent:\n%s\nis not within %s.\nPlease provide data within\n%s.",
				ext, e.rules.ExtentName, e.rules.Extent),
		}
	}

	// 6. Both identification attributes must exist.
	attrs := l.AttributeNames()
	if !slices.Contains(attrs, AttrPlotID) || !slices.Contains(attrs, AttrComments) {
		return &ValidationError{
			Kind: KindMissingAttributes,
			Message: fmt.Sprintf("The data should contain both an \"%s\" and a \"%s\" attribute.\nAvailable attributes: [%s]",
				AttrPlotID, AttrComments, strings.Join(attrs, ", ")),
		}
	}

	return nil
}

// checkOverlap tests every unordered pair of features once, in layer order,
// and returns the features for the extraction pass.
func (e *Exporter) checkOverlap(ctx context.Context, l layer.Layer) ([]*layer.Feature, error) {
	var features []*layer.Feature
	for f := range l.Features() {
		features = append(features, f)
	}

	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = plotID(f)
	}

	for i, a := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j := i + 1; j < len(features); j++ {
			b := features[j]

			if ids[i] == ids[j] {
				if e.rules.AllowDuplicatePlotIDs {
					continue
				}

				return nil, &ValidationError{
					Kind: KindDuplicatePlotID,
					Message: fmt.Sprintf("These two features share the Plot-ID \"%s\":\n%s\n%s\n"+
						"Every plot needs its own Plot-ID.", ids[i], a, b),
					Features: []int{a.ID(), b.ID()},
					PlotID:   ids[i],
				}
			}

			if a.Geometry().Intersects(b.Geometry()) {
				return nil, &ValidationError{
					Kind: KindFeatureIntersection,
					Message: fmt.Sprintf("These two features intersect each other: \n%s\n%s. "+
						"They should not share vertices and segments should not touch.", a, b),
					Features: []int{a.ID(), b.ID()},
				}
			}
		}
	}

	return features, nil
}

// extract reduces a feature to its plot record.
func (e *Exporter) extract(f *layer.Feature) (fieldexplorer.PlotRecord, *ValidationError) {
	id := plotID(f)
	fail := func(kind Kind, format string, args ...any) (fieldexplorer.PlotRecord, *ValidationError) {
		return fieldexplorer.PlotRecord{}, &ValidationError{
			Kind:     kind,
			Message:  fmt.Sprintf(format, args...),
			Features: []int{f.ID()},
			PlotID:   id,
		}
	}

	poly, err := f.Geometry().SinglePolygon()
	if err != nil {
		return fail(KindGeometryNotSingle, "Cannot convert feature %s to a single polygon.", f)
	}

	poly.ForceClockwise()

	vertices := poly.Vertices()

	switch n := len(vertices); {
	case n > 5:
		return fail(KindTooManyVertices,
			"The feature %s\ncontains too many vertices,\nthere should be just 4, but has: %d", f, n-1)
	case n < 5:
		return fail(KindTooFewVertices,
			"The feature %s\ncontains too few vertices,\nthere should be 4, but has: %d", f, n-1)
	}

	if n := utf8.RuneCountInString(id); n > fieldexplorer.MaxPlotIDLength {
		return fail(KindPlotIDTooLong,
			"The feature %s\nhas a Plot-ID of length %d\nPlease change this Plot-ID to a shorter one:\n\"%s\"", f, n, id)
	}

	for _, c := range fieldexplorer.ForbiddenPlotIDChars {
		if strings.ContainsRune(id, c) {
			return fail(KindPlotIDForbiddenChar,
				"The feature %s\ncontains the character \"%c\" which is forbidden in Plot-IDs\n"+
					"Please change this Plot-ID: \"%s\"", f, c, id)
		}
	}

	rec := fieldexplorer.PlotRecord{PlotID: id, Comments: text(f, AttrComments)}
	for i := range rec.Corners {
		rec.Corners[i] = fieldexplorer.Corner{Lat: vertices[i].Lat(), Lon: vertices[i].Lon()}
	}

	return rec, nil
}

func plotID(f *layer.Feature) string {
	return text(f, AttrPlotID)
}

// text returns an attribute as text, or "" when the feature lacks it.
func text(f *layer.Feature, name string) string {
	s, err := f.Text(name)
	if err != nil {
		return ""
	}

	return s
}
