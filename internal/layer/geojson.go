package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultCRS is the CRS of a GeoJSON file without a crs member (RFC 7946).
const DefaultCRS = "EPSG:4326"

type featureCollection struct {
	Type     string       `json:"type"`
	CRS      *namedCRS    `json:"crs"`
	Features []rawFeature `json:"features"`
}

type namedCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// LoadGeoJSON reads a GeoJSON FeatureCollection from path.
func LoadGeoJSON(path string) (*VectorLayer, error) {
	f, err := os.Open(path) //nolint:gosec // User-specified input file
	if err != nil {
		return nil, fmt.Errorf("opening layer: %w", err)
	}
	defer f.Close()

	return DecodeGeoJSON(f, NameFromPath(path), path)
}

// DecodeGeoJSON reads a GeoJSON FeatureCollection from r. The attribute
// schema is the union of all property keys in first-seen order.
func DecodeGeoJSON(r io.Reader, name, path string) (*VectorLayer, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parsing GeoJSON: expected a FeatureCollection, got %q", fc.Type)
	}

	crs := DefaultCRS
	if fc.CRS != nil && fc.CRS.Properties.Name != "" {
		crs = NormalizeCRS(fc.CRS.Properties.Name)
	}

	var (
		fields   []string
		seen     = make(map[string]bool)
		features = make([]*Feature, 0, len(fc.Features))
	)

	for i, rf := range fc.Features {
		keys, attrs, err := decodeProperties(rf.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}

		var geom *Geometry

		if raw := bytes.TrimSpace(rf.Geometry); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			geom, err = ParseGeometry(string(raw))
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		}

		features = append(features, NewFeature(i, attrs, geom))
	}

	return NewVectorLayer(name, path, crs, fields, features), nil
}

// decodeProperties decodes a properties object keeping the key order.
// Numbers are kept as json.Number so that their text survives unchanged.
func decodeProperties(raw json.RawMessage) ([]string, map[string]any, error) {
	attrs := make(map[string]any)

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, attrs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing properties: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("parsing properties: expected an object")
	}

	var keys []string

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("parsing properties: %w", err)
		}

		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("parsing property %q: %w", key, err)
		}

		if _, dup := attrs[key]; !dup {
			keys = append(keys, key)
		}

		attrs[key] = v
	}

	return keys, attrs, nil
}

// NormalizeCRS maps the CRS names found in GeoJSON files to an authority
// code. OGC CRS84 is reported as EPSG:4326; unknown names are returned
// unchanged.
func NormalizeCRS(name string) string {
	n := strings.TrimSpace(name)
	upper := strings.ToUpper(n)

	switch {
	case upper == "URN:OGC:DEF:CRS:OGC:1.3:CRS84", upper == "OGC:CRS84", upper == "CRS84":
		return DefaultCRS
	case strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		return "EPSG:" + n[strings.LastIndex(n, ":")+1:]
	case strings.HasPrefix(upper, "EPSG:"):
		return "EPSG:" + n[len("EPSG:"):]
	default:
		return n
	}
}
