package load

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/mpr"
	"github.com/rowpack/mpr/pkg/schema"
	"github.com/rowpack/mpr/pkg/source"
)

func fixtureSource() source.Source {
	rows := [][]interface{}{
		{"Quarterly export, do not edit"},
		{""},
		{"Name", "Age", "City"},
		{"Alice", "30", "NYC"},
		{"Bob", "25", "LA"},
		{"Carol", "41", "Chicago"},
		{"Dave", "", "Boston"},
		{"Eve", "29", "Denver"},
	}
	return source.NewSliceSource("people.csv", rows)
}

func loadFixture(t *testing.T, opts Options) (*Result, *mpr.Reader) {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "people.mpr")
	res, err := Run(context.Background(), fixtureSource(), dest, opts)
	require.NoError(t, err)

	r, err := mpr.Open(dest)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return res, r
}

func readData(t *testing.T, r *mpr.Reader) [][]interface{} {
	t.Helper()
	it, err := r.Rows()
	require.NoError(t, err)
	defer it.Close()

	var out [][]interface{}
	for {
		row, err := it.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, row)
	}
}

func TestFusedLoad(t *testing.T) {
	res, r := loadFixture(t, Options{})

	assert.Equal(t, int64(5), res.RowCount)

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.True(t, meta.Process.Finalized)
	assert.Equal(t, "people.csv", meta.Source.Name)
	assert.Equal(t, []int{2}, meta.RowSpec.HeaderRows)
	assert.Equal(t, []int{0}, meta.RowSpec.CommentRows)
	assert.Equal(t, 3, meta.RowSpec.DataStart)
	assert.Equal(t, []string{"Quarterly export, do not edit"}, meta.Comments)
	assert.Equal(t, meta.RowCount, int64(5))

	require.Equal(t, []string{"name", "age", "city"}, meta.Schema.Names())
	assert.Equal(t, schema.TypeString, meta.Schema.Columns[0].Type)
	assert.Equal(t, schema.TypeInt, meta.Schema.Columns[1].Type)
	assert.True(t, meta.Schema.Columns[1].Nullable)
	assert.Equal(t, schema.TypeString, meta.Schema.Columns[2].Type)

	require.Len(t, meta.Stats, 3)
	age := meta.Stats[1]
	assert.Equal(t, schema.LOMInterval, age.LOM)
	assert.Equal(t, int64(4), age.Count)
	assert.Equal(t, int64(1), age.Nulls)
	assert.Equal(t, 25.0, age.Min)
	assert.Equal(t, 41.0, age.Max)
	assert.InDelta(t, 31.25, age.Mean, 1e-9)

	data := readData(t, r)
	require.Len(t, data, 5)
	assert.Equal(t, "Alice", data[0][0])
	assert.Equal(t, "Denver", data[4][2])
}

func TestMultiPassMatchesFused(t *testing.T) {
	fusedRes, fusedR := loadFixture(t, Options{Mode: ModeFused})
	multiRes, multiR := loadFixture(t, Options{Mode: ModeMultiPass})

	assert.Equal(t, fusedRes.RowCount, multiRes.RowCount)

	fm, err := fusedR.Metadata()
	require.NoError(t, err)
	mm, err := multiR.Metadata()
	require.NoError(t, err)

	assert.Equal(t, fm.Schema, mm.Schema)
	assert.Equal(t, fm.RowSpec, mm.RowSpec)
	assert.Equal(t, fm.Stats, mm.Stats)
	assert.Equal(t, readData(t, fusedR), readData(t, multiR))
}

func TestParallelStatsMatchesSequential(t *testing.T) {
	seqRes, seqR := loadFixture(t, Options{})
	parRes, parR := loadFixture(t, Options{StatsWorkers: 3})

	assert.Equal(t, seqRes.RowCount, parRes.RowCount)

	sm, err := seqR.Metadata()
	require.NoError(t, err)
	pm, err := parR.Metadata()
	require.NoError(t, err)
	assert.Equal(t, sm.Stats, pm.Stats)
}

func TestLoadNoHeaders(t *testing.T) {
	rows := [][]interface{}{
		{"1", "2.5"},
		{"2", "3.5"},
		{"3", "4.5"},
	}
	dest := filepath.Join(t.TempDir(), "nums.mpr")
	res, err := Run(context.Background(), source.NewSliceSource("nums", rows), dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowCount)

	r, err := mpr.Open(dest)
	require.NoError(t, err)
	defer r.Close()

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.False(t, meta.RowSpec.HasHeaders())
	assert.Equal(t, 0, meta.RowSpec.DataStart)
	assert.Equal(t, []string{"col0", "col1"}, meta.Schema.Names())
	assert.Equal(t, schema.TypeInt, meta.Schema.Columns[0].Type)
	assert.Equal(t, schema.TypeFloat, meta.Schema.Columns[1].Type)
}

func TestLoadRaggedRowsNormalized(t *testing.T) {
	rows := [][]interface{}{
		{"a", "b"},
		{"x", "1"},
		{"y", "2"},
		{"w", "3", "stray extra cell"},
		{"v"},
	}
	dest := filepath.Join(t.TempDir(), "ragged.mpr")
	_, err := Run(context.Background(), source.NewSliceSource("ragged", rows), dest, Options{})
	require.NoError(t, err)

	r, err := mpr.Open(dest)
	require.NoError(t, err)
	defer r.Close()

	data := readData(t, r)
	for _, row := range data {
		assert.Len(t, row, 2)
	}
}

func TestLoadEmptySource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.mpr")
	_, err := Run(context.Background(), source.NewSliceSource("empty", nil), dest, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientSample(err))
}

func TestLoadSampleStride(t *testing.T) {
	var rows [][]interface{}
	rows = append(rows, []interface{}{"n"})
	for i := 0; i < 100; i++ {
		rows = append(rows, []interface{}{"5"})
	}
	dest := filepath.Join(t.TempDir(), "strided.mpr")
	res, err := Run(context.Background(), source.NewSliceSource("strided", rows), dest, Options{SampleStride: 10})
	require.NoError(t, err)

	// Every row is stored even though stats only sampled a tenth
	assert.Equal(t, int64(100), res.RowCount)
	require.Len(t, res.Meta.Stats, 1)
	assert.Equal(t, int64(10), res.Meta.Stats[0].Count)
}
