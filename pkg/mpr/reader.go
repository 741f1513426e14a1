package mpr

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rowpack/mpr/pkg/compression"
	"github.com/rowpack/mpr/pkg/errors"
)

// newDecompressor is swapped out by tests that assert metadata reads never
// construct a decompressor.
var newDecompressor = compression.ForAlgorithm

// Reader reads a container file. Opening validates only the trailer;
// metadata and rows are read on demand. Metadata access never touches the
// row block or a decompressor, so inspecting a large container is cheap.
type Reader struct {
	f       *os.File
	size    int64
	trailer *Trailer
	meta    *Metadata
}

// Open opens a container file and validates its trailer
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open container")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "stat container")
	}
	if info.Size() < TrailerSize {
		f.Close()
		return nil, errors.Newf(errors.ErrorTypeCorruptContainer,
			"file is %d bytes, smaller than the %d byte trailer", info.Size(), TrailerSize)
	}

	buf := make([]byte, TrailerSize)
	if _, err := f.ReadAt(buf, info.Size()-TrailerSize); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "read trailer")
	}
	trailer, err := UnmarshalTrailer(buf, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{f: f, size: info.Size(), trailer: trailer}, nil
}

// Trailer returns the decoded file trailer
func (r *Reader) Trailer() *Trailer { return r.trailer }

// Metadata decodes and caches the metadata block. One seek, one bounded
// read, no decompression.
func (r *Reader) Metadata() (*Metadata, error) {
	if r.meta != nil {
		return r.meta, nil
	}
	sec := io.NewSectionReader(r.f, int64(r.trailer.MetaOff), int64(r.trailer.MetaLen))
	var meta Metadata
	if err := msgpack.NewDecoder(sec).Decode(&meta); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "decode metadata block")
	}
	r.meta = &meta
	return r.meta, nil
}

// Rows opens a lazy iterator over the row block. Decompression and decoding
// happen incrementally; stopping early never decodes the remainder.
func (r *Reader) Rows() (*Rows, error) {
	meta, err := r.Metadata()
	if err != nil {
		return nil, err
	}

	compressor, err := newDecompressor(r.trailer.Algo)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "unknown row block compression")
	}

	sec := io.NewSectionReader(r.f, int64(r.trailer.RowOff), int64(r.trailer.RowLen))
	sum := xxhash.New()
	tee := io.TeeReader(sec, sum)
	rc, err := compressor.NewReader(tee)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "open row block")
	}

	return &Rows{
		rc:      rc,
		dec:     msgpack.NewDecoder(rc),
		tee:     tee,
		sum:     sum,
		wantSum: r.trailer.RowSum,
		width:   meta.Width(),
		idx:     -1,
	}, nil
}

// Close closes the underlying file. Iterators opened from this reader stop
// working after Close.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Rows walks the row block. Next returns io.EOF after the last row, once
// the block checksum has been verified.
type Rows struct {
	rc      io.ReadCloser
	dec     *msgpack.Decoder
	tee     io.Reader
	sum     *xxhash.Digest
	wantSum uint64

	width int
	idx   int64
	done  bool
}

// Next returns the next row
func (rows *Rows) Next() ([]interface{}, error) {
	if rows.done {
		return nil, io.EOF
	}
	var row []interface{}
	err := rows.dec.Decode(&row)
	if err == io.EOF {
		return nil, rows.finish()
	}
	if err != nil {
		rows.done = true
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "decode row")
	}
	rows.idx++
	if rows.width > 0 && len(row) != rows.width {
		rows.done = true
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"row %d has %d cells, schema has %d columns", rows.idx, len(row), rows.width)
	}
	return row, nil
}

// finish drains the compressed block and verifies its checksum. A mismatch
// means the stored rows are not the rows that were written.
func (rows *Rows) finish() error {
	rows.done = true
	if _, err := io.Copy(io.Discard, rows.tee); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCorruptContainer, "drain row block")
	}
	if got := rows.sum.Sum64(); got != rows.wantSum {
		return errors.Newf(errors.ErrorTypeCorruptContainer,
			"row block checksum mismatch: got %016x, want %016x", got, rows.wantSum)
	}
	return io.EOF
}

// Close releases the decompressor
func (rows *Rows) Close() error {
	rows.done = true
	return rows.rc.Close()
}
