// Package layer is the read-only view of a plot layer that the export
// pipeline consumes: its kind, CRS, extent, attribute schema and features.
//
// Vector layers are loaded from GeoJSON files and their geometries are
// backed by GEOS. Raster and unknown files are represented by a [FileLayer]
// that carries only a name and a path, so that callers can report them as
// unsuitable instead of failing to parse them.
package layer

import (
	"fmt"
	"iter"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Kind classifies a layer by its data model.
type Kind int

const (
	// KindVector is a feature layer with geometries and attributes.
	KindVector Kind = iota
	// KindRaster is a gridded image layer.
	KindRaster
	// KindOther is anything that is neither vector nor raster.
	KindOther
)

// String returns the lowercase label for the kind.
func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindRaster:
		return "raster"
	default:
		return "other"
	}
}

// Layer is the capability surface the export pipeline needs from a layer.
type Layer interface {
	Kind() Kind
	Name() string
	// CRSAuthorityCode returns the CRS as an authority code, e.g. "EPSG:4326".
	CRSAuthorityCode() string
	Extent() Rect
	// AttributeNames returns the attribute field names in schema order.
	AttributeNames() []string
	SourcePath() string
	// Features returns a fresh iteration over the features on every call.
	Features() iter.Seq[*Feature]
}

// Rect is an axis-aligned rectangle with X = longitude and Y = latitude.
type Rect struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// EmptyRect returns a rectangle that contains nothing and extends to any
// rectangle it is unioned with.
func EmptyRect() Rect {
	return Rect{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether r covers no area and no point.
func (r Rect) IsEmpty() bool {
	return r.MinX > r.MaxX || r.MinY > r.MaxY
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	if o.IsEmpty() {
		return r
	}

	if r.IsEmpty() {
		return o
	}

	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Contains reports whether o lies inside r, boundaries included. An empty
// rectangle is contained in every rectangle.
func (r Rect) Contains(o Rect) bool {
	if o.IsEmpty() {
		return true
	}

	return o.MinX >= r.MinX && o.MaxX <= r.MaxX &&
		o.MinY >= r.MinY && o.MaxY <= r.MaxY
}

// String formats r as "xmin,ymin : xmax,ymax".
func (r Rect) String() string {
	if r.IsEmpty() {
		return "Empty"
	}

	return fmt.Sprintf("%g,%g : %g,%g", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// VectorLayer is an in-memory feature layer.
type VectorLayer struct {
	name     string
	path     string
	crs      string
	fields   []string
	features []*Feature
	extent   Rect
}

// NewVectorLayer builds a layer from already decoded features. The features
// are bound to fields so that their attribute values are reported in schema
// order.
func NewVectorLayer(name, path, crs string, fields []string, features []*Feature) *VectorLayer {
	extent := EmptyRect()

	for _, f := range features {
		f.fields = fields

		if f.geom != nil {
			extent = extent.Union(f.geom.Bounds())
		}
	}

	return &VectorLayer{
		name:     name,
		path:     path,
		crs:      crs,
		fields:   fields,
		features: features,
		extent:   extent,
	}
}

// Kind always returns KindVector.
func (l *VectorLayer) Kind() Kind { return KindVector }

// Name returns the layer name.
func (l *VectorLayer) Name() string { return l.name }

// CRSAuthorityCode returns the normalised CRS authority code.
func (l *VectorLayer) CRSAuthorityCode() string { return l.crs }

// Extent returns the union of all feature bounds.
func (l *VectorLayer) Extent() Rect { return l.extent }

// AttributeNames returns a copy of the attribute field names.
func (l *VectorLayer) AttributeNames() []string { return slices.Clone(l.fields) }

// SourcePath returns the file the layer was read from.
func (l *VectorLayer) SourcePath() string { return l.path }

// Features iterates over the features in file order.
func (l *VectorLayer) Features() iter.Seq[*Feature] { return slices.Values(l.features) }

// Len returns the number of features.
func (l *VectorLayer) Len() int { return len(l.features) }

// FileLayer is a non-vector layer known only by its file.
type FileLayer struct {
	kind Kind
	name string
	path string
}

// Kind returns the kind derived from the file extension.
func (l *FileLayer) Kind() Kind { return l.kind }

// Name returns the layer name.
func (l *FileLayer) Name() string { return l.name }

// CRSAuthorityCode is unknown for file layers.
func (l *FileLayer) CRSAuthorityCode() string { return "" }

// Extent is empty for file layers.
func (l *FileLayer) Extent() Rect { return EmptyRect() }

// AttributeNames is empty for file layers.
func (l *FileLayer) AttributeNames() []string { return nil }

// SourcePath returns the file path.
func (l *FileLayer) SourcePath() string { return l.path }

// Features yields nothing for file layers.
func (l *FileLayer) Features() iter.Seq[*Feature] {
	return func(func(*Feature) bool) {}
}

var (
	vectorExtensions = []string{".geojson", ".json"}
	rasterExtensions = []string{".tif", ".tiff", ".asc", ".png", ".jpg", ".jpeg", ".vrt"}
)

// Open loads the layer stored at path. GeoJSON files become vector layers;
// raster and unknown files are returned as a FileLayer of the matching kind.
func Open(path string) (Layer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if slices.Contains(vectorExtensions, ext) {
		return LoadGeoJSON(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening layer: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("opening layer: %s is a directory", path)
	}

	kind := KindOther
	if slices.Contains(rasterExtensions, ext) {
		kind = KindRaster
	}

	return &FileLayer{kind: kind, name: NameFromPath(path), path: path}, nil
}

// NameFromPath derives a layer name from its file: the base name without
// extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
