// Package mpr implements the Message Pack Rows container: a single file
// holding a compressed stream of msgpack-encoded rows, a separately encoded
// metadata dictionary, and a fixed-size trailer that locates both. The
// trailer sits at the end of the file so writers can stream rows without
// knowing sizes up front, and readers can fetch metadata with one seek and
// one bounded read.
package mpr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rowpack/mpr/pkg/errors"
)

const (
	// Magic closes every container file
	Magic = "MPRPACK1"

	// Version is the container format version written by this package
	Version uint16 = 1

	// TrailerSize is the fixed byte length of the trailer
	TrailerSize = 58

	algoFieldLen = 8
)

// Trailer is the fixed-size index at the end of a container file. All
// integers are big-endian.
//
//	version   uint16
//	rowOff    uint64   offset of the compressed row block
//	rowLen    uint64   compressed row block length in bytes
//	metaOff   uint64   offset of the metadata block
//	metaLen   uint64   metadata block length in bytes
//	rowSum    uint64   xxhash64 of the compressed row block
//	algo      [8]byte  compression algorithm name, NUL padded
//	magic     [8]byte  "MPRPACK1"
type Trailer struct {
	Version uint16
	RowOff  uint64
	RowLen  uint64
	MetaOff uint64
	MetaLen uint64
	RowSum  uint64
	Algo    string
}

// Marshal encodes the trailer into its fixed wire form
func (t *Trailer) Marshal() ([]byte, error) {
	if len(t.Algo) > algoFieldLen {
		return nil, errors.Newf(errors.ErrorTypeInternal, "algorithm name %q exceeds %d bytes", t.Algo, algoFieldLen)
	}
	buf := make([]byte, TrailerSize)
	binary.BigEndian.PutUint16(buf[0:2], t.Version)
	binary.BigEndian.PutUint64(buf[2:10], t.RowOff)
	binary.BigEndian.PutUint64(buf[10:18], t.RowLen)
	binary.BigEndian.PutUint64(buf[18:26], t.MetaOff)
	binary.BigEndian.PutUint64(buf[26:34], t.MetaLen)
	binary.BigEndian.PutUint64(buf[34:42], t.RowSum)
	copy(buf[42:50], t.Algo)
	copy(buf[50:58], Magic)
	return buf, nil
}

// UnmarshalTrailer decodes and validates a trailer against the total file
// size. Any inconsistency means the file is not a container, or has been
// truncated or overwritten.
func UnmarshalTrailer(buf []byte, fileSize int64) (*Trailer, error) {
	if len(buf) != TrailerSize {
		return nil, errors.Newf(errors.ErrorTypeCorruptContainer, "trailer is %d bytes, want %d", len(buf), TrailerSize)
	}
	if string(buf[50:58]) != Magic {
		return nil, errors.New(errors.ErrorTypeCorruptContainer, "bad magic, not a container file")
	}

	t := &Trailer{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		RowOff:  binary.BigEndian.Uint64(buf[2:10]),
		RowLen:  binary.BigEndian.Uint64(buf[10:18]),
		MetaOff: binary.BigEndian.Uint64(buf[18:26]),
		MetaLen: binary.BigEndian.Uint64(buf[26:34]),
		RowSum:  binary.BigEndian.Uint64(buf[34:42]),
		Algo:    strings.TrimRight(string(buf[42:50]), "\x00"),
	}

	if t.Version != Version {
		return nil, errors.Newf(errors.ErrorTypeCorruptContainer, "unsupported container version %d", t.Version)
	}
	if fileSize < TrailerSize {
		return nil, errors.Newf(errors.ErrorTypeCorruptContainer, "file is %d bytes, smaller than trailer", fileSize)
	}
	// Length-first comparisons keep the bounds checks overflow-safe against
	// crafted offset/length pairs that wrap uint64.
	body := uint64(fileSize) - TrailerSize
	if t.RowLen > body || t.RowOff > body-t.RowLen ||
		t.MetaLen > body || t.MetaOff > body-t.MetaLen ||
		t.RowOff+t.RowLen > t.MetaOff {
		return nil, errors.New(errors.ErrorTypeCorruptContainer, "trailer offsets out of bounds")
	}
	return t, nil
}

func (t *Trailer) String() string {
	return fmt.Sprintf("trailer{v%d rows=%d@%d meta=%d@%d algo=%s}",
		t.Version, t.RowLen, t.RowOff, t.MetaLen, t.MetaOff, t.Algo)
}
