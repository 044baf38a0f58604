package export

import (
	"errors"
)

// ErrCancelled is returned when the user declines the export. It is not a
// failure and is never notified.
var ErrCancelled = errors.New("export cancelled by user")

// Kind identifies the rule a layer or feature violated.
type Kind string

// Validation failure kinds, in pipeline order.
const (
	KindNotAVectorLayer      Kind = "NotAVectorLayer"
	KindDirectoryNotWritable Kind = "DirectoryNotWritable"
	KindWrongCRS             Kind = "WrongCRS"
	KindExtentOutOfBounds    Kind = "ExtentOutOfBounds"
	KindMissingAttributes    Kind = "MissingAttributes"
	KindDuplicatePlotID      Kind = "DuplicatePlotID"
	KindFeatureIntersection  Kind = "FeatureIntersection"
	KindGeometryNotSingle    Kind = "GeometryNotSingle"
	KindTooManyVertices      Kind = "TooManyVertices"
	KindTooFewVertices       Kind = "TooFewVertices"
	KindPlotIDTooLong        Kind = "PlotIdTooLong"
	KindPlotIDForbiddenChar  Kind = "PlotIdForbiddenChar"
)

// ValidationError reports the first rule a layer violated. Message is the
// text shown to the user.
type ValidationError struct {
	Kind    Kind   `json:"kind"              yaml:"kind"`
	Message string `json:"message"           yaml:"message"`
	Layer   string `json:"layer"             yaml:"layer"`
	// Features holds the positions of the offending features, if any.
	Features []int `json:"features,omitempty" yaml:"features,omitempty"`
	PlotID   string `json:"plotId,omitempty"   yaml:"plotId,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// KindOf returns the kind of a validation failure anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}

	return "", false
}
