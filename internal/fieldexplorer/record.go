// Package fieldexplorer implements the plot file format read by the
// FieldExplorer application: one header row followed by one row per plot
// with the plot identifier, four corner coordinates and a free-text comment.
//
// The column names and their order are fixed by the consuming application.
package fieldexplorer

import (
	"strconv"
	"strings"
)

// Header is the column row of every plot file.
var Header = []string{
	"Plot-ID",
	"A(LAT)", "A(LONG)",
	"B(LAT)", "B(LONG)",
	"C(LAT)", "C(LONG)",
	"D(LAT)", "D(LONG)",
	"Comments",
}

// MaxPlotIDLength is the maximum number of characters in a Plot-ID.
const MaxPlotIDLength = 50

// ForbiddenPlotIDChars lists the characters a Plot-ID may not contain, in
// the order they are checked.
var ForbiddenPlotIDChars = []rune{'\\', '/', ':', '*', '?', '"', '<', '>', '|'}

// Corner is one plot corner in geographic coordinates.
type Corner struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// PlotRecord is one row of a plot file. Corners are ordered clockwise.
type PlotRecord struct {
	PlotID   string    `json:"plotId"   yaml:"plotId"`
	Corners  [4]Corner `json:"corners"  yaml:"corners"`
	Comments string    `json:"comments" yaml:"comments"`
}

// Row returns the record as CSV fields in Header order.
func (r PlotRecord) Row() []string {
	row := make([]string, 0, len(Header))
	row = append(row, r.PlotID)

	for _, c := range r.Corners {
		row = append(row, FormatCoord(c.Lat), FormatCoord(c.Lon))
	}

	return append(row, r.Comments)
}

// IsClockwise reports whether the corners wind clockwise when longitude is
// plotted on the x axis and latitude on the y axis.
func (r PlotRecord) IsClockwise() bool {
	var sum float64

	for i, c := range r.Corners {
		n := r.Corners[(i+1)%len(r.Corners)]
		sum += c.Lon*n.Lat - n.Lon*c.Lat
	}

	return sum < 0
}

// Equal reports whether r and o describe the same plot. Line breaks in
// comments compare equal whether written as CRLF or LF, since CSV readers
// fold CRLF inside quoted fields.
func (r PlotRecord) Equal(o PlotRecord) bool {
	return r.PlotID == o.PlotID &&
		r.Corners == o.Corners &&
		foldCRLF(r.Comments) == foldCRLF(o.Comments)
}

func foldCRLF(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// FormatCoord returns the shortest decimal text that parses back to v.
// Integral values keep one decimal place, so 52 is written as "52.0".
func FormatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}

	return s
}
