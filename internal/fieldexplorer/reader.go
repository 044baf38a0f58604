package fieldexplorer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ErrBadHeader is returned when a file does not start with Header.
var ErrBadHeader = errors.New("not a FieldExplorer plot file")

// Read parses a plot file into records.
func Read(r io.Reader) ([]PlotRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrBadHeader)
	}

	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	// Spreadsheet tools may prepend a byte order mark.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrBadHeader, header)
	}

	var records []PlotRecord

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading plot row: %w", err)
		}

		rec, err := parseRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string) (PlotRecord, error) {
	rec := PlotRecord{PlotID: row[0], Comments: row[len(row)-1]}

	for i := range rec.Corners {
		lat, err := strconv.ParseFloat(row[1+2*i], 64)
		if err != nil {
			return PlotRecord{}, fmt.Errorf("column %s: %w", Header[1+2*i], err)
		}

		lon, err := strconv.ParseFloat(row[2+2*i], 64)
		if err != nil {
			return PlotRecord{}, fmt.Errorf("column %s: %w", Header[2+2*i], err)
		}

		rec.Corners[i] = Corner{Lat: lat, Lon: lon}
	}

	return rec, nil
}
