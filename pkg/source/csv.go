package source

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/rowpack/mpr/pkg/errors"
)

// CSVSource reads rows from a delimited text file. Rows come back exactly as
// the file has them, including any banner and header rows; downstream row
// intuition decides what they are.
type CSVSource struct {
	Path string

	// Comma is the field delimiter, ',' when zero
	Comma rune

	// LazyQuotes relaxes quote handling for files that mix quoting styles
	LazyQuotes bool
}

// NewCSVSource creates a source over a CSV file at path
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Name() string { return s.Path }

func (s *CSVSource) Open(ctx context.Context) (RowIter, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open csv source")
	}

	r := csv.NewReader(f)
	// Ragged rows are normal in messy input; arity is resolved downstream.
	r.FieldsPerRecord = -1
	r.LazyQuotes = s.LazyQuotes
	if s.Comma != 0 {
		r.Comma = s.Comma
	}

	return &csvIter{ctx: ctx, f: f, r: r}, nil
}

type csvIter struct {
	ctx context.Context
	f   *os.File
	r   *csv.Reader
}

func (it *csvIter) Next() ([]interface{}, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := it.r.Read()
	if err != nil {
		// io.EOF passes through untouched
		return nil, err
	}
	row := make([]interface{}, len(rec))
	for i, cell := range rec {
		row[i] = cell
	}
	return row, nil
}

func (it *csvIter) Close() error { return it.f.Close() }
