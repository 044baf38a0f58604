package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fieldexport/internal/fieldexplorer"
	"github.com/hupe1980/fieldexport/internal/layer"
	"github.com/hupe1980/fieldexport/internal/logging"
	"github.com/hupe1980/fieldexport/internal/output"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type recordingNotifier struct {
	errors    []string
	successes []string
	durations []time.Duration
}

func (n *recordingNotifier) Error(msg string) { n.errors = append(n.errors, msg) }

func (n *recordingNotifier) Success(msg string, d time.Duration) {
	n.successes = append(n.successes, msg)
	n.durations = append(n.durations, d)
}

type scriptedConfirmer struct {
	answer  bool
	err     error
	calls   int
	title   string
	message string
}

func (c *scriptedConfirmer) Confirm(title, message string) (bool, error) {
	c.calls++
	c.title, c.message = title, message

	return c.answer, c.err
}

type readOnlyFS struct {
	*output.Disk
}

func (readOnlyFS) IsWritable(string) bool { return false }

type otherLayer struct {
	kind layer.Kind
	path string
}

func (l otherLayer) Kind() layer.Kind { return l.kind }
func (l otherLayer) Name() string { return layer.NameFromPath(l.path) }
func (l otherLayer) CRSAuthorityCode() string { return "" }
func (l otherLayer) Extent() layer.Rect { return layer.EmptyRect() }
func (l otherLayer) AttributeNames() []string { return nil }
func (l otherLayer) SourcePath() string { return l.path }
func (l otherLayer) Features() iter.Seq[*layer.Feature] { return func(func(*layer.Feature) bool) {} }

// plot describes one feature of a test layer. A nil id or comments leaves
// the attribute unset; an empty geom yields a feature without geometry.
type plot struct {
	id       any
	comments any
	geom     string
}

// square returns a counter-clockwise square polygon with its lower left
// corner at lon, lat.
func square(lon, lat, size float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		lon, lat, lon+size, lat, lon+size, lat+size, lon, lat+size, lon, lat)
}

func newLayer(t *testing.T, dir, crs string, fields []string, plots ...plot) *layer.VectorLayer {
	t.Helper()

	features := make([]*layer.Feature, 0, len(plots))

	for i, p := range plots {
		attrs := map[string]any{}
		if p.id != nil {
			attrs[AttrPlotID] = p.id
		}

		if p.comments != nil {
			attrs[AttrComments] = p.comments
		}

		var geom *layer.Geometry

		if p.geom != "" {
			g, err := layer.ParseGeometry(p.geom)
			require.NoError(t, err)

			geom = g
		}

		features = append(features, layer.NewFeature(i, attrs, geom))
	}

	return layer.NewVectorLayer("plots", filepath.Join(dir, "plots.geojson"), crs, fields, features)
}

func plotLayer(t *testing.T, dir string, plots ...plot) *layer.VectorLayer {
	t.Helper()

	return newLayer(t, dir, RequiredCRS, []string{AttrPlotID, AttrComments}, plots...)
}

func newTestExporter(n *recordingNotifier, opts ...Option) *Exporter {
	base := []Option{WithLogger(logging.Discard()), WithNotifier(n)}
	return New(append(base, opts...)...)
}

func requireKind(t *testing.T, err error, want Kind) *ValidationError {
	t.Helper()

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, want, ve.Kind, "message: %s", ve.Message)

	return ve
}

func readCSV(t *testing.T, path string) []fieldexplorer.PlotRecord {
	t.Helper()

	f, err := os.Open(path) //nolint:gosec // test
	require.NoError(t, err)

	defer f.Close()

	records, err := fieldexplorer.Read(f)
	require.NoError(t, err)

	return records
}

func assertNoCSV(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, ".csv", filepath.Ext(e.Name()), "unexpected file %s", e.Name())
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file %s left behind", e.Name())
	}
}

// ---------------------------------------------------------------------------
// Successful export
// ---------------------------------------------------------------------------

func TestRun_ValidLayer(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir,
		plot{id: "P-01", comments: "north field", geom: square(5.0, 52.0, 0.001)},
		plot{id: "P-02", comments: "has, comma", geom: square(5.002, 52.0, 0.001)},
		plot{id: "P-03", comments: "", geom: square(5.004, 52.0, 0.001)},
	)

	n := &recordingNotifier{}
	res, err := newTestExporter(n).Run(context.Background(), l)
	require.NoError(t, err)

	path := filepath.Join(dir, "plots.csv")
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 3, res.Rows)
	assert.True(t, res.Written)
	assert.Empty(t, n.errors)
	require.Len(t, n.successes, 1)
	assert.Equal(t, "Successfully wrote FieldExplorer CSV file to:\n"+path, n.successes[0])
	assert.Equal(t, 15*time.Second, n.durations[0])

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, res.Records, records)
	assert.Equal(t, "has, comma", records[1].Comments)

	for _, r := range records {
		assert.True(t, r.IsClockwise(), "plot %s must be clockwise", r.PlotID)
	}
}

func TestRun_GoldenFile(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "layers", "plots.geojson"))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "plots.geojson")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	l, err := layer.Open(path)
	require.NoError(t, err)

	_, err = newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "plots.csv")) //nolint:gosec // test
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("..", "..", "testdata", "golden", "plots.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(got))
}

func TestRun_CornersFromClockwiseStart(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "c", geom: square(5, 52, 1)})

	res, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, [4]fieldexplorer.Corner{
		{Lat: 52, Lon: 5},
		{Lat: 53, Lon: 5},
		{Lat: 53, Lon: 6},
		{Lat: 52, Lon: 6},
	}, res.Records[0].Corners)
}

func TestRun_WindingDoesNotChangeOutput(t *testing.T) {
	cw := `{"type":"Polygon","coordinates":[[[5,52],[5,53],[6,53],[6,52],[5,52]]]}`

	dirA, dirB := t.TempDir(), t.TempDir()

	resA, err := newTestExporter(&recordingNotifier{}).Run(context.Background(),
		plotLayer(t, dirA, plot{id: "P", comments: "", geom: square(5, 52, 1)}))
	require.NoError(t, err)

	resB, err := newTestExporter(&recordingNotifier{}).Run(context.Background(),
		plotLayer(t, dirB, plot{id: "P", comments: "", geom: cw}))
	require.NoError(t, err)

	assert.Equal(t, resA.Records, resB.Records)
}

func TestRun_SinglePartMultiPolygon(t *testing.T) {
	multi := `{"type":"MultiPolygon","coordinates":[[[[5,52],[5.1,52],[5.1,52.1],[5,52.1],[5,52]]]]}`
	l := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: multi})

	res, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}

func TestRun_EmptyLayerWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir)

	res, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)

	got, err := os.ReadFile(filepath.Join(dir, "plots.csv")) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, strings.Join(fieldexplorer.Header, ",")+"\r\n", string(got))
}

func TestRun_LFTerminator(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

	_, err := newTestExporter(&recordingNotifier{}, WithTerminator(fieldexplorer.LF)).Run(context.Background(), l)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "plots.csv")) //nolint:gosec // test
	require.NoError(t, err)
	assert.NotContains(t, string(got), "\r")
}

func TestRun_MissingCommentsValueIsEmpty(t *testing.T) {
	l := plotLayer(t, t.TempDir(), plot{id: "P", geom: square(5, 52, 0.1)})

	res, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, res.Records[0].Comments)
}

// ---------------------------------------------------------------------------
// Confirmation
// ---------------------------------------------------------------------------

func TestRun_ConfirmationDeclined(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

	n := &recordingNotifier{}
	c := &scriptedConfirmer{answer: false}

	res, err := newTestExporter(n, WithConfirmer(c)).Run(context.Background(), l)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "FieldExplorer NL", c.title)
	assert.Equal(t, `Save current active layer "plots" to FieldExplorer CSV?`, c.message)
	assert.Empty(t, n.errors)
	assert.Empty(t, n.successes)
	assertNoCSV(t, dir)

	_, isValidation := KindOf(err)
	assert.False(t, isValidation)
}

func TestRun_ConfirmationError(t *testing.T) {
	c := &scriptedConfirmer{err: errors.New("stdin closed")}
	l := plotLayer(t, t.TempDir())

	_, err := newTestExporter(&recordingNotifier{}, WithConfirmer(c)).Run(context.Background(), l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdin closed")
}

func TestValidate_SkipsConfirmation(t *testing.T) {
	c := &scriptedConfirmer{answer: false}
	l := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

	res, err := newTestExporter(&recordingNotifier{}, WithConfirmer(c)).Validate(context.Background(), l)
	require.NoError(t, err)
	assert.Zero(t, c.calls)
	assert.Equal(t, 1, res.Rows)
	assert.False(t, res.Written)
}

// ---------------------------------------------------------------------------
// Layer-level gates
// ---------------------------------------------------------------------------

func TestRun_NotAVectorLayer(t *testing.T) {
	for _, kind := range []layer.Kind{layer.KindRaster, layer.KindOther} {
		t.Run(kind.String(), func(t *testing.T) {
			n := &recordingNotifier{}
			c := &scriptedConfirmer{answer: true}
			l := otherLayer{kind: kind, path: filepath.Join(t.TempDir(), "aerial.tif")}

			_, err := newTestExporter(n, WithConfirmer(c)).Run(context.Background(), l)
			ve := requireKind(t, err, KindNotAVectorLayer)

			assert.Contains(t, ve.Message, `"aerial"`)
			assert.Zero(t, c.calls, "no confirmation for non-vector layers")
			assert.Equal(t, []string{ve.Message}, n.errors)
		})
	}
}

func TestRun_DirectoryNotWritable(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

	n := &recordingNotifier{}
	_, err := newTestExporter(n, WithFileSystem(readOnlyFS{output.NewDisk()})).Run(context.Background(), l)
	ve := requireKind(t, err, KindDirectoryNotWritable)

	assert.Contains(t, ve.Message, dir)
	assert.Len(t, n.errors, 1)
	assertNoCSV(t, dir)
}

func TestRun_WrongCRS(t *testing.T) {
	for _, crs := range []string{"EPSG:28992", "EPSG:3857", "", "epsg:4326"} {
		t.Run(crs, func(t *testing.T) {
			dir := t.TempDir()
			l := newLayer(t, dir, crs, []string{AttrPlotID, AttrComments},
				plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

			_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
			ve := requireKind(t, err, KindWrongCRS)
			assert.Contains(t, ve.Message, `but is: "`+crs+`"`)
			assertNoCSV(t, dir)
		})
	}
}

func TestRun_ExtentOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir,
		plot{id: "A", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: "", geom: square(7.95, 52, 0.1)},
	)

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindExtentOutOfBounds)

	assert.Contains(t, ve.Message, "5,52 : 8.05,52.1")
	assert.Contains(t, ve.Message, "is not within The Netherlands")
	assert.Contains(t, ve.Message, "2,50 : 8,55")
	assertNoCSV(t, dir)
}

func TestRun_ExtentBoundaryIsInclusive(t *testing.T) {
	l := plotLayer(t, t.TempDir(),
		plot{id: "SW", comments: "", geom: square(2, 50, 1)},
		plot{id: "NE", comments: "", geom: square(7, 54, 1)},
	)

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)
}

func TestRun_CustomExtent(t *testing.T) {
	rules := DefaultRules()
	rules.Extent = layer.Rect{MinX: 10, MinY: 50, MaxX: 12, MaxY: 52}
	rules.ExtentName = "the configured extent"

	inside := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: square(11, 51, 0.1)})
	_, err := newTestExporter(&recordingNotifier{}, WithRules(rules)).Run(context.Background(), inside)
	require.NoError(t, err)

	outside := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: square(5, 52, 0.1)})
	_, err = newTestExporter(&recordingNotifier{}, WithRules(rules)).Run(context.Background(), outside)
	ve := requireKind(t, err, KindExtentOutOfBounds)
	assert.Contains(t, ve.Message, "the configured extent")
}

func TestRun_MissingAttributes(t *testing.T) {
	tests := map[string][]string{
		"no Plot-ID":      {"plot_id", AttrComments},
		"no Comments":     {AttrPlotID, "Remarks"},
		"case mismatch":   {"plot-id", "comments"},
		"neither present": {"Area"},
	}

	for name, fields := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			l := newLayer(t, dir, RequiredCRS, fields, plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

			_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
			ve := requireKind(t, err, KindMissingAttributes)
			assert.Contains(t, ve.Message, "Available attributes: ["+strings.Join(fields, ", ")+"]")
			assertNoCSV(t, dir)
		})
	}
}

func TestRun_GateOrder(t *testing.T) {
	// Wrong CRS, out of bounds and missing attributes: the CRS gate wins.
	l := newLayer(t, t.TempDir(), "EPSG:28992", []string{"x"},
		plot{geom: square(150000, 450000, 10)})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	requireKind(t, err, KindWrongCRS)
}

// ---------------------------------------------------------------------------
// Overlap check
// ---------------------------------------------------------------------------

func TestRun_TouchingFeatures(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir,
		plot{id: "A", comments: "left", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: "right", geom: square(5.1, 52, 0.1)},
	)

	n := &recordingNotifier{}
	_, err := newTestExporter(n).Run(context.Background(), l)
	ve := requireKind(t, err, KindFeatureIntersection)

	assert.Contains(t, ve.Message, "[A, left]")
	assert.Contains(t, ve.Message, "[B, right]")
	assert.Equal(t, []int{0, 1}, ve.Features)
	assert.Len(t, n.errors, 1)
	assertNoCSV(t, dir)
}

func TestRun_OverlappingFeatures(t *testing.T) {
	l := plotLayer(t, t.TempDir(),
		plot{id: "A", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: "", geom: square(5.3, 52, 0.1)},
		plot{id: "C", comments: "", geom: square(5.05, 52.05, 0.1)},
	)

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindFeatureIntersection)
	assert.Equal(t, []int{0, 2}, ve.Features)
}

func TestRun_DuplicatePlotID(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir,
		plot{id: "P-01", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "P-01", comments: "", geom: square(6, 52, 0.1)},
	)

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindDuplicatePlotID)
	assert.Equal(t, "P-01", ve.PlotID)
	assertNoCSV(t, dir)
}

func TestRun_AllowDuplicatePlotIDsExemptsPair(t *testing.T) {
	rules := DefaultRules()
	rules.AllowDuplicatePlotIDs = true

	// Same Plot-ID and overlapping: exempt from the intersection test.
	l := plotLayer(t, t.TempDir(),
		plot{id: "P-01", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "P-01", comments: "", geom: square(5.05, 52.05, 0.1)},
	)

	res, err := newTestExporter(&recordingNotifier{}, WithRules(rules)).Run(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
}

func TestRun_FeaturesWithoutGeometryNeverIntersect(t *testing.T) {
	l := plotLayer(t, t.TempDir(),
		plot{id: "A", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: ""},
	)

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	// The pair passes the overlap check; the empty feature fails extraction.
	requireKind(t, err, KindGeometryNotSingle)
}

// ---------------------------------------------------------------------------
// Per-feature gates
// ---------------------------------------------------------------------------

func TestRun_GeometryNotSingle(t *testing.T) {
	tests := map[string]string{
		"multi-part": `{"type":"MultiPolygon","coordinates":[` +
			`[[[5,52],[5.1,52],[5.1,52.1],[5,52.1],[5,52]]],` +
			`[[[6,52],[6.1,52],[6.1,52.1],[6,52.1],[6,52]]]]}`,
		"point":      `{"type":"Point","coordinates":[5,52]}`,
		"linestring": `{"type":"LineString","coordinates":[[5,52],[5.1,52.1]]}`,
		"no geometry": "",
	}

	for name, geom := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			l := plotLayer(t, dir, plot{id: "P", comments: "x", geom: geom})

			_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
			ve := requireKind(t, err, KindGeometryNotSingle)
			assert.Equal(t, "Cannot convert feature [P, x] to a single polygon.", ve.Message)
			assertNoCSV(t, dir)
		})
	}
}

func TestRun_TooManyVertices(t *testing.T) {
	pentagon := `{"type":"Polygon","coordinates":[[[5,52],[5.1,52],[5.15,52.05],[5.1,52.1],[5,52.1],[5,52]]]}`
	l := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: pentagon})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindTooManyVertices)
	assert.True(t, strings.HasSuffix(ve.Message, "there should be just 4, but has: 5"), ve.Message)
}

func TestRun_HoleCountsAsVertices(t *testing.T) {
	withHole := `{"type":"Polygon","coordinates":[` +
		`[[5,52],[5.1,52],[5.1,52.1],[5,52.1],[5,52]],` +
		`[[5.02,52.02],[5.08,52.02],[5.08,52.08],[5.02,52.08],[5.02,52.02]]]}`
	l := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: withHole})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindTooManyVertices)
	assert.True(t, strings.HasSuffix(ve.Message, "but has: 9"), ve.Message)
}

func TestRun_TooFewVertices(t *testing.T) {
	triangle := `{"type":"Polygon","coordinates":[[[5,52],[5.1,52],[5.05,52.1],[5,52]]]}`
	l := plotLayer(t, t.TempDir(), plot{id: "P", comments: "", geom: triangle})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindTooFewVertices)
	assert.True(t, strings.HasSuffix(ve.Message, "but has: 3"), ve.Message)
}

func TestRun_PlotIDLength(t *testing.T) {
	ok50 := strings.Repeat("a", 50)
	unicode50 := strings.Repeat("é", 50)
	long51 := strings.Repeat("a", 51)

	for _, id := range []string{ok50, unicode50} {
		l := plotLayer(t, t.TempDir(), plot{id: id, comments: "", geom: square(5, 52, 0.1)})
		_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
		require.NoError(t, err, "id of %d runes", len([]rune(id)))
	}

	l := plotLayer(t, t.TempDir(), plot{id: long51, comments: "", geom: square(5, 52, 0.1)})
	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindPlotIDTooLong)
	assert.Contains(t, ve.Message, "has a Plot-ID of length 51")
	assert.Equal(t, long51, ve.PlotID)
}

func TestRun_PlotIDForbiddenChar(t *testing.T) {
	for _, c := range fieldexplorer.ForbiddenPlotIDChars {
		id := "P" + string(c) + "01"

		l := plotLayer(t, t.TempDir(), plot{id: id, comments: "", geom: square(5, 52, 0.1)})
		_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
		ve := requireKind(t, err, KindPlotIDForbiddenChar)
		assert.Contains(t, ve.Message, `the character "`+string(c)+`"`)
	}
}

func TestRun_PlotIDForbiddenCharScanOrder(t *testing.T) {
	// '|' appears first in the ID, but '\' comes first in the scan order.
	l := plotLayer(t, t.TempDir(), plot{id: `a|b\c`, comments: "", geom: square(5, 52, 0.1)})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	ve := requireKind(t, err, KindPlotIDForbiddenChar)
	assert.Contains(t, ve.Message, `the character "\"`)
}

func TestRun_LengthCheckedBeforeCharacters(t *testing.T) {
	id := strings.Repeat("/", 51)
	l := plotLayer(t, t.TempDir(), plot{id: id, comments: "", geom: square(5, 52, 0.1)})

	_, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	requireKind(t, err, KindPlotIDTooLong)
}

func TestRun_NumericPlotID(t *testing.T) {
	l := plotLayer(t, t.TempDir(), plot{id: 17, comments: nil, geom: square(5, 52, 0.1)})

	res, err := newTestExporter(&recordingNotifier{}).Run(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "17", res.Records[0].PlotID)
}

// ---------------------------------------------------------------------------
// All-or-nothing output
// ---------------------------------------------------------------------------

func TestRun_FailureMidWriteKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "plots.csv")
	require.NoError(t, os.WriteFile(target, []byte("previous export\r\n"), 0o600))

	pentagon := `{"type":"Polygon","coordinates":[[[6,52],[6.1,52],[6.15,52.05],[6.1,52.1],[6,52.1],[6,52]]]}`
	l := plotLayer(t, dir,
		plot{id: "A", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: "", geom: pentagon},
	)

	n := &recordingNotifier{}
	_, err := newTestExporter(n).Run(context.Background(), l)
	requireKind(t, err, KindTooManyVertices)

	got, err := os.ReadFile(target) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, "previous export\r\n", string(got))
	assert.Len(t, n.errors, 1)
	assert.Empty(t, n.successes)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be removed")
}

func TestRun_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "", geom: square(5, 52, 0.1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := &recordingNotifier{}
	_, err := newTestExporter(n).Run(ctx, l)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.errors)
	assertNoCSV(t, dir)
}

// ---------------------------------------------------------------------------
// DryRun / Validate
// ---------------------------------------------------------------------------

func TestDryRun_WritesToWriter(t *testing.T) {
	dir := t.TempDir()
	l := plotLayer(t, dir, plot{id: "P", comments: "c", geom: square(5, 52, 0.1)})

	var buf bytes.Buffer

	n := &recordingNotifier{}
	res, err := newTestExporter(n, WithFileSystem(readOnlyFS{output.NewDisk()})).DryRun(context.Background(), l, &buf)
	require.NoError(t, err)

	assert.False(t, res.Written)
	assert.Equal(t, 1, res.Rows)
	assert.True(t, strings.HasPrefix(buf.String(), "Plot-ID,A(LAT)"))
	assert.Empty(t, n.successes)
	assertNoCSV(t, dir)
}

func TestDryRun_FailureWritesNothing(t *testing.T) {
	plots := make([]plot, 0, 101)
	for i := range 100 {
		plots = append(plots, plot{id: fmt.Sprintf("P-%03d", i), comments: "", geom: square(5+float64(i)*0.02, 52, 0.01)})
	}

	plots = append(plots, plot{id: "bad", comments: "",
		geom: `{"type":"Polygon","coordinates":[[[7,52],[7.01,52],[7.015,52.005],[7.01,52.01],[7,52.01],[7,52]]]}`})

	l := plotLayer(t, t.TempDir(), plots...)

	var buf bytes.Buffer

	_, err := newTestExporter(&recordingNotifier{}).DryRun(context.Background(), l, &buf)
	requireKind(t, err, KindTooManyVertices)
	assert.Zero(t, buf.Len(), "no partial CSV may reach the writer")
}

func TestValidate_ReportsFailure(t *testing.T) {
	l := plotLayer(t, t.TempDir(),
		plot{id: "A", comments: "", geom: square(5, 52, 0.1)},
		plot{id: "B", comments: "", geom: square(5.1, 52, 0.1)},
	)

	res, err := newTestExporter(&recordingNotifier{}).Validate(context.Background(), l)
	requireKind(t, err, KindFeatureIntersection)
	require.NotNil(t, res)
	require.NotNil(t, res.Failure)
	assert.Equal(t, "plots", res.Failure.Layer)
}

// ---------------------------------------------------------------------------
// CSVPath / KindOf / DefaultRules
// ---------------------------------------------------------------------------

func TestCSVPath(t *testing.T) {
	tests := map[string]string{
		"/data/plots.geojson":                "/data/plots.csv",
		"/data/trial.2024.shp":               "/data/trial.2024.csv",
		"/data/fields.gpkg|layername=fields": "/data/fields.csv",
		"relative/plots.json":                "relative/plots.csv",
		"plots":                              "plots.csv",
	}

	for in, want := range tests {
		assert.Equal(t, filepath.FromSlash(want), CSVPath(filepath.FromSlash(in)), in)
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("exporting: %w", &ValidationError{Kind: KindWrongCRS, Message: "m"})

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindWrongCRS, kind)
	assert.Equal(t, "exporting: m", err.Error())

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, layer.Rect{MinX: 2, MinY: 50, MaxX: 8, MaxY: 55}, r.Extent)
	assert.Equal(t, "The Netherlands", r.ExtentName)
	assert.False(t, r.AllowDuplicatePlotIDs)
}
