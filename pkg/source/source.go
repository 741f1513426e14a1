// Package source abstracts where rows come from. A Source can be opened any
// number of times, each time yielding a fresh iterator over the same row
// sequence; multi-pass loads rely on that restartability.
package source

import (
	"context"
	"io"
)

// RowIter walks a row sequence. Next returns io.EOF after the last row.
type RowIter interface {
	Next() ([]interface{}, error)
	Close() error
}

// Source produces row iterators. Open may be called more than once; every
// call restarts the sequence from the beginning.
type Source interface {
	// Name identifies the source for provenance metadata, typically a file
	// path or URL.
	Name() string
	Open(ctx context.Context) (RowIter, error)
}

// SliceSource serves rows from an in-memory slice. Used in tests and for
// callers that already hold their data.
type SliceSource struct {
	SourceName string
	Rows       [][]interface{}
}

// NewSliceSource wraps rows in a restartable source
func NewSliceSource(name string, rows [][]interface{}) *SliceSource {
	return &SliceSource{SourceName: name, Rows: rows}
}

func (s *SliceSource) Name() string {
	if s.SourceName == "" {
		return "memory"
	}
	return s.SourceName
}

func (s *SliceSource) Open(ctx context.Context) (RowIter, error) {
	return &sliceIter{rows: s.Rows}, nil
}

type sliceIter struct {
	rows [][]interface{}
	pos  int
}

func (it *sliceIter) Next() ([]interface{}, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIter) Close() error { return nil }
