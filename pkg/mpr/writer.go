package mpr

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/rowpack/mpr/pkg/compression"
	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/logger"
)

// WriterConfig controls how a container is written
type WriterConfig struct {
	Compression *compression.Config
}

// Writer streams rows into a container file. Rows go straight through the
// compressor as they arrive, so memory stays constant regardless of row
// count. The file is built in a temp sibling and renamed into place on
// Close, so a crashed write never leaves a half-written container at the
// target path.
//
// Callers fill in Meta before Close; everything written there lands in the
// metadata block.
type Writer struct {
	Meta *Metadata

	path    string
	tmpPath string
	f       *os.File
	count   *countingWriter
	sum     *xxhash.Digest
	comp    io.WriteCloser
	enc     *msgpack.Encoder
	algo    compression.Algorithm

	rowIndex int64
	closed   bool
}

// Create opens a container writer targeting path. cfg may be nil for the
// default compression.
func Create(path string, cfg *WriterConfig) (*Writer, error) {
	ccfg := compression.DefaultConfig()
	if cfg != nil && cfg.Compression != nil {
		ccfg = cfg.Compression
	}
	compressor, err := compression.NewCompressor(ccfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create compressor")
	}

	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "create temp container")
	}

	sum := xxhash.New()
	count := &countingWriter{w: io.MultiWriter(f, sum)}
	comp, err := compressor.NewWriter(count)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "open compression stream")
	}

	return &Writer{
		Meta:    NewMetadata(),
		path:    path,
		tmpPath: f.Name(),
		f:       f,
		count:   count,
		sum:     sum,
		comp:    comp,
		enc:     msgpack.NewEncoder(comp),
		algo:    compressor.Algorithm(),
	}, nil
}

// WriteRow appends one data row to the row block. Header and banner rows
// never go in the block; their content lives in the metadata (schema names,
// comments). When a schema is set the row arity is enforced.
func (w *Writer) WriteRow(row []interface{}) error {
	if w.closed {
		return errors.New(errors.ErrorTypeInternal, "write on closed container writer")
	}
	if w.Meta.Schema != nil {
		if want := w.Meta.Schema.Width(); len(row) != want {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"row %d has %d cells, schema has %d columns", w.rowIndex, len(row), want)
		}
	}
	if err := w.enc.Encode(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "encode row")
	}
	w.rowIndex++
	return nil
}

// RowsWritten returns the number of rows streamed so far
func (w *Writer) RowsWritten() int64 { return w.rowIndex }

// Close seals the row block, writes the metadata block and trailer, and
// renames the temp file onto the target path. The container only exists at
// the target path if Close returns nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	fail := func(err error, errType errors.ErrorType, msg string) error {
		w.f.Close()
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errType, msg)
	}

	if err := w.comp.Close(); err != nil {
		return fail(err, errors.ErrorTypeIO, "flush compression stream")
	}
	// Row count in the metadata always matches the block
	w.Meta.RowCount = w.rowIndex
	rowLen := w.count.n
	rowSum := w.sum.Sum64()

	metaBuf, err := msgpack.Marshal(w.Meta)
	if err != nil {
		return fail(err, errors.ErrorTypeInternal, "encode metadata")
	}
	if _, err := w.f.Write(metaBuf); err != nil {
		return fail(err, errors.ErrorTypeIO, "write metadata block")
	}

	trailer := &Trailer{
		Version: Version,
		RowOff:  0,
		RowLen:  uint64(rowLen),
		MetaOff: uint64(rowLen),
		MetaLen: uint64(len(metaBuf)),
		RowSum:  rowSum,
		Algo:    string(w.algo),
	}
	tbuf, err := trailer.Marshal()
	if err != nil {
		return fail(err, errors.ErrorTypeInternal, "encode trailer")
	}
	if _, err := w.f.Write(tbuf); err != nil {
		return fail(err, errors.ErrorTypeIO, "write trailer")
	}

	if err := w.f.Sync(); err != nil {
		return fail(err, errors.ErrorTypeIO, "sync container")
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "close container")
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return errors.Wrap(err, errors.ErrorTypeIO, "rename container into place")
	}

	logger.Get().Debug("container written",
		zap.String("path", w.path),
		zap.Int64("rows", w.rowIndex),
		zap.Int64("row_block_bytes", rowLen),
		zap.Int("meta_bytes", len(metaBuf)),
		zap.String("algo", string(w.algo)))
	return nil
}

// Abort discards the writer and its temp file
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.comp.Close()
	w.f.Close()
	return os.Remove(w.tmpPath)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
