package etl

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Frame is the tabular output of the extract stage: a header with normalized
// column names plus the raw string cells of every data row.
type Frame struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// Col returns the positional index of a normalized column name.
func (f *Frame) Col(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Value returns the cell for a column in the given row, or "" when the row is
// ragged and the cell is absent.
func (f *Frame) Value(row []string, name string) string {
	i, ok := f.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Extract reads the accident CSV at path into a Frame. The file is decoded as
// UTF-8 first and re-read as Latin-1 when that fails; no third encoding is
// attempted. Header names are normalized for downstream lookup: BOM stripped,
// trimmed, lower-cased, inner spaces replaced with underscores.
func Extract(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}

	text := string(data)
	utf8Err := error(nil)
	if !utf8.Valid(data) {
		utf8Err = errors.New("invalid UTF-8 byte sequence")
	}

	if utf8Err == nil {
		frame, parseErr := parseCSV(text)
		if parseErr == nil {
			return frame, nil
		}
		utf8Err = parseErr
	}

	// Second and final attempt: Latin-1.
	decoded, decErr := charmap.ISO8859_1.NewDecoder().String(string(data))
	if decErr != nil {
		return nil, &EncodingError{Path: path, Err: errors.Join(utf8Err, decErr)}
	}

	frame, parseErr := parseCSV(decoded)
	if parseErr != nil {
		return nil, &EncodingError{Path: path, Err: errors.Join(utf8Err, parseErr)}
	}

	return frame, nil
}

func parseCSV(text string) (*Frame, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		columns[i] = h
		index[h] = i
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}

	return &Frame{Columns: columns, Rows: rows, index: index}, nil
}
