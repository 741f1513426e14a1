package mpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowpack/mpr/pkg/errors"
)

func TestTrailerRoundTrip(t *testing.T) {
	in := &Trailer{
		Version: Version,
		RowOff:  0,
		RowLen:  1234,
		MetaOff: 1234,
		MetaLen: 567,
		RowSum:  0xdeadbeefcafef00d,
		Algo:    "zstd",
	}
	buf, err := in.Marshal()
	require.NoError(t, err)
	require.Len(t, buf, TrailerSize)

	out, err := UnmarshalTrailer(buf, 1234+567+TrailerSize)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTrailerBadMagic(t *testing.T) {
	trailer := &Trailer{Version: Version, Algo: "none"}
	buf, err := trailer.Marshal()
	require.NoError(t, err)
	copy(buf[50:], "NOTMAGIC")

	_, err = UnmarshalTrailer(buf, TrailerSize)
	require.Error(t, err)
	assert.True(t, errors.IsCorrupt(err))
}

func TestTrailerBadVersion(t *testing.T) {
	trailer := &Trailer{Version: 99, Algo: "none"}
	buf, err := trailer.Marshal()
	require.NoError(t, err)

	_, err = UnmarshalTrailer(buf, TrailerSize)
	require.Error(t, err)
	assert.True(t, errors.IsCorrupt(err))
}

func TestTrailerOffsetsOutOfBounds(t *testing.T) {
	trailer := &Trailer{
		Version: Version,
		RowLen:  1000,
		MetaOff: 1000,
		MetaLen: 1000,
		Algo:    "zstd",
	}
	buf, err := trailer.Marshal()
	require.NoError(t, err)

	// File too small to hold the blocks the trailer claims
	_, err = UnmarshalTrailer(buf, 500+TrailerSize)
	require.Error(t, err)
	assert.True(t, errors.IsCorrupt(err))
}

func TestTrailerOffsetOverflow(t *testing.T) {
	// Offset+length pairs chosen to wrap uint64 and land back inside the
	// file bounds must still be rejected.
	cases := []Trailer{
		{Version: Version, RowOff: ^uint64(0), RowLen: 1, Algo: "zstd"},
		{Version: Version, MetaOff: ^uint64(0), MetaLen: 1, Algo: "zstd"},
		{Version: Version, RowOff: ^uint64(0) - 10, RowLen: 20, MetaOff: 5, Algo: "zstd"},
	}
	for _, trailer := range cases {
		buf, err := trailer.Marshal()
		require.NoError(t, err)

		_, err = UnmarshalTrailer(buf, 1000+TrailerSize)
		require.Error(t, err, "trailer %v must not pass bounds validation", trailer)
		assert.True(t, errors.IsCorrupt(err))
	}
}

func TestTrailerWrongLength(t *testing.T) {
	_, err := UnmarshalTrailer(make([]byte, 10), 10)
	require.Error(t, err)
	assert.True(t, errors.IsCorrupt(err))
}

func TestTrailerAlgoTooLong(t *testing.T) {
	trailer := &Trailer{Version: Version, Algo: "muchtoolongname"}
	_, err := trailer.Marshal()
	assert.Error(t, err)
}
