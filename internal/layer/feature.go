package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ErrAttributeNotFound is returned when a feature has no value for a field.
var ErrAttributeNotFound = errors.New("attribute not found")

// Feature is one record of a vector layer.
type Feature struct {
	id     int
	attrs  map[string]any
	geom   *Geometry
	fields []string
}

// NewFeature creates a feature. A nil geometry is allowed and represents a
// feature without geometry.
func NewFeature(id int, attrs map[string]any, geom *Geometry) *Feature {
	if attrs == nil {
		attrs = map[string]any{}
	}

	return &Feature{id: id, attrs: attrs, geom: geom}
}

// ID returns the zero-based position of the feature in its source file.
func (f *Feature) ID() int { return f.id }

// Geometry returns the feature geometry, or nil.
func (f *Feature) Geometry() *Geometry { return f.geom }

// Attribute returns the raw value stored under name.
func (f *Feature) Attribute(name string) (any, error) {
	v, ok := f.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAttributeNotFound, name)
	}

	return v, nil
}

// Text returns the attribute value as text. JSON null becomes the empty
// string; numbers keep their source representation.
func (f *Feature) Text(name string) (string, error) {
	v, err := f.Attribute(name)
	if err != nil {
		return "", err
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("attribute %q: %w", name, err)
	}

	return s, nil
}

// Values returns the attribute values in layer schema order. Fields the
// feature does not carry are reported as nil.
func (f *Feature) Values() []any {
	values := make([]any, 0, len(f.fields))
	for _, name := range f.fields {
		values = append(values, f.attrs[name])
	}

	return values
}

// String renders the attribute values like "[P-01, north corner]", with
// NULL for missing values.
func (f *Feature) String() string {
	parts := make([]string, 0, len(f.fields))

	for _, v := range f.Values() {
		if v == nil {
			parts = append(parts, "NULL")
			continue
		}

		s, err := cast.ToStringE(v)
		if err != nil {
			s = fmt.Sprint(v)
		}

		parts = append(parts, s)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
