package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/rowpack/mpr/pkg/errors"
)

// FixedWidthField names one column of a fixed-width layout by byte offsets
// into each line.
type FixedWidthField struct {
	Name  string
	Start int // inclusive
	End   int // exclusive
}

// FixedWidthSource reads rows from a fixed-width text file. Every line split
// by the field layout yields one row; field values are trimmed.
type FixedWidthSource struct {
	Path   string
	Fields []FixedWidthField
}

func NewFixedWidthSource(path string, fields []FixedWidthField) *FixedWidthSource {
	return &FixedWidthSource{Path: path, Fields: fields}
}

func (s *FixedWidthSource) Name() string { return s.Path }

// Headers returns the configured field names, which stand in for a header
// row since fixed-width files rarely carry one.
func (s *FixedWidthSource) Headers() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func (s *FixedWidthSource) Open(ctx context.Context) (RowIter, error) {
	if len(s.Fields) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "fixed-width source has no field layout")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open fixed-width source")
	}
	return &fixedIter{ctx: ctx, f: f, sc: bufio.NewScanner(f), fields: s.Fields}, nil
}

type fixedIter struct {
	ctx    context.Context
	f      *os.File
	sc     *bufio.Scanner
	fields []FixedWidthField
}

func (it *fixedIter) Next() ([]interface{}, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	if !it.sc.Scan() {
		if err := it.sc.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "read fixed-width line")
		}
		return nil, io.EOF
	}
	line := it.sc.Text()
	row := make([]interface{}, len(it.fields))
	for i, fld := range it.fields {
		lo, hi := fld.Start, fld.End
		if lo > len(line) {
			lo = len(line)
		}
		if hi > len(line) {
			hi = len(line)
		}
		row[i] = strings.TrimSpace(line[lo:hi])
	}
	return row, nil
}

func (it *fixedIter) Close() error { return it.f.Close() }
