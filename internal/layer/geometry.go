package layer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/twpayne/go-geos"
)

// ErrNotSingle is returned when a geometry cannot be reduced to exactly one
// polygon.
var ErrNotSingle = errors.New("geometry is not a single polygon")

// Geometry wraps a GEOS geometry decoded from the layer.
type Geometry struct {
	g *geos.Geom
}

// ParseGeometry decodes a GeoJSON geometry object.
func ParseGeometry(geoJSON string) (*Geometry, error) {
	g, err := geos.NewGeomFromGeoJSON(geoJSON)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}

	return &Geometry{g: g}, nil
}

// TypeName returns the geometry type, e.g. "Polygon".
func (g *Geometry) TypeName() string {
	if g == nil || g.g == nil {
		return "None"
	}

	switch g.g.TypeID() {
	case geos.TypeIDPoint:
		return "Point"
	case geos.TypeIDLineString:
		return "LineString"
	case geos.TypeIDLinearRing:
		return "LinearRing"
	case geos.TypeIDPolygon:
		return "Polygon"
	case geos.TypeIDMultiPoint:
		return "MultiPoint"
	case geos.TypeIDMultiLineString:
		return "MultiLineString"
	case geos.TypeIDMultiPolygon:
		return "MultiPolygon"
	case geos.TypeIDGeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}

// Bounds returns the bounding rectangle, or an empty rectangle for an empty
// geometry.
func (g *Geometry) Bounds() Rect {
	if g == nil || g.g == nil || g.g.IsEmpty() {
		return EmptyRect()
	}

	b := g.g.Bounds()

	return Rect{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// Intersects reports whether g and o share any point, boundary or interior.
// Touching polygons intersect.
func (g *Geometry) Intersects(o *Geometry) bool {
	if g == nil || o == nil || g.g == nil || o.g == nil {
		return false
	}

	return g.g.Intersects(o.g)
}

// SinglePolygon converts g to a single polygon. A polygon is returned as is,
// a multi-polygon with exactly one part yields that part; anything else
// fails with ErrNotSingle.
func (g *Geometry) SinglePolygon() (*Polygon, error) {
	if g == nil || g.g == nil || g.g.IsEmpty() {
		return nil, ErrNotSingle
	}

	poly := g.g

	switch g.g.TypeID() {
	case geos.TypeIDPolygon:
	case geos.TypeIDMultiPolygon:
		if g.g.NumGeometries() != 1 {
			return nil, ErrNotSingle
		}

		poly = g.g.Geometry(0)
	default:
		return nil, ErrNotSingle
	}

	rings := make([][]Vertex, 0, 1+poly.NumInteriorRings())
	rings = append(rings, toVertices(poly.ExteriorRing().CoordSeq().ToCoords()))

	for i := range poly.NumInteriorRings() {
		rings = append(rings, toVertices(poly.InteriorRing(i).CoordSeq().ToCoords()))
	}

	return &Polygon{Rings: rings}, nil
}

// Vertex is a coordinate pair with X = longitude and Y = latitude.
type Vertex struct {
	X, Y float64
}

// Lat returns the latitude.
func (v Vertex) Lat() float64 { return v.Y }

// Lon returns the longitude.
func (v Vertex) Lon() float64 { return v.X }

// Polygon is a single polygon as closed rings of vertices. Rings[0] is the
// exterior ring.
type Polygon struct {
	Rings [][]Vertex
}

// ForceClockwise orients the exterior ring clockwise and interior rings
// counter-clockwise. Reversal keeps the starting vertex of each ring.
func (p *Polygon) ForceClockwise() {
	for i, ring := range p.Rings {
		ccw := SignedArea(ring) > 0
		if (i == 0 && ccw) || (i > 0 && !ccw) {
			slices.Reverse(ring)
		}
	}
}

// Exterior returns the exterior ring including its closing vertex.
func (p *Polygon) Exterior() []Vertex {
	if len(p.Rings) == 0 {
		return nil
	}

	return p.Rings[0]
}

// Vertices returns every vertex of every ring, closing vertices included.
func (p *Polygon) Vertices() []Vertex {
	var n int
	for _, ring := range p.Rings {
		n += len(ring)
	}

	out := make([]Vertex, 0, n)
	for _, ring := range p.Rings {
		out = append(out, ring...)
	}

	return out
}

// SignedArea returns the shoelace area of a ring: positive for
// counter-clockwise, negative for clockwise winding.
func SignedArea(ring []Vertex) float64 {
	var sum float64

	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}

	return sum / 2
}

func toVertices(coords [][]float64) []Vertex {
	out := make([]Vertex, 0, len(coords))
	for _, c := range coords {
		out = append(out, Vertex{X: c[0], Y: c[1]})
	}

	return out
}
