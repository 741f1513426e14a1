package stats

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowpack/mpr/pkg/schema"
)

func numericSchema(names ...string) *schema.Schema {
	s := schema.New(names)
	for i := range s.Columns {
		s.Columns[i].Type = schema.TypeFloat
		s.Columns[i].LOM = schema.LOMInterval
	}
	return s
}

func TestWelfordMatchesTwoPass(t *testing.T) {
	values := []float64{1.5, 2.25, -4, 100, 0.001, 17, 3, 3, 3, -99.5}

	e := NewEngine(numericSchema("x"))
	for _, v := range values {
		e.UpdateRow([]interface{}{v})
	}
	got := e.Finalize()[0]

	// Two-pass reference
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	variance := ss / float64(len(values)-1)

	assert.InDelta(t, mean, got.Mean, 1e-9)
	assert.InDelta(t, variance, got.Variance, 1e-9)
	assert.Equal(t, -99.5, got.Min)
	assert.Equal(t, 100.0, got.Max)
	assert.Equal(t, int64(len(values)), got.Count)
}

func TestStatsOrderIndependence(t *testing.T) {
	values := make([]float64, 500)
	rng := rand.New(rand.NewSource(7))
	for i := range values {
		values[i] = rng.NormFloat64() * 1000
	}

	run := func(vs []float64) ColumnStats {
		e := NewEngine(numericSchema("x"))
		for _, v := range vs {
			e.UpdateRow([]interface{}{v})
		}
		return e.Finalize()[0]
	}

	base := run(values)
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]float64(nil), values...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := run(shuffled)

		assert.Equal(t, base.Count, got.Count)
		assert.Equal(t, base.Nulls, got.Nulls)
		assert.Equal(t, base.Min, got.Min)
		assert.Equal(t, base.Max, got.Max)
		assert.InDelta(t, base.Mean, got.Mean, 1e-9)
		assert.InDelta(t, base.Variance, got.Variance, 1e-6)
	}
}

func TestAllNegativeColumn(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	for _, v := range []float64{-5, -3, -9} {
		e.UpdateRow([]interface{}{v})
	}

	got := e.Finalize()[0]
	assert.Equal(t, -9.0, got.Min)
	assert.Equal(t, -3.0, got.Max, "max must come from observed values, not the zero value")
}

func TestAllPositiveColumnMin(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	for _, v := range []float64{5, 3, 9} {
		e.UpdateRow([]interface{}{v})
	}

	got := e.Finalize()[0]
	assert.Equal(t, 3.0, got.Min)
	assert.Equal(t, 9.0, got.Max)
}

func TestNonNumericCountedAsNull(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	e.UpdateRow([]interface{}{"1"})
	e.UpdateRow([]interface{}{"not a number"})
	e.UpdateRow([]interface{}{"3"})

	got := e.Finalize()[0]
	assert.Equal(t, int64(2), got.Count)
	assert.Equal(t, int64(1), got.Nulls)
	assert.InDelta(t, 2.0, got.Mean, 1e-9)
}

func TestNonFiniteExcludedButCounted(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	e.UpdateRow([]interface{}{1.0})
	e.UpdateRow([]interface{}{math.Inf(1)})
	e.UpdateRow([]interface{}{math.NaN()})
	e.UpdateRow([]interface{}{3.0})

	got := e.Finalize()[0]
	assert.Equal(t, int64(4), got.Count)
	assert.Equal(t, int64(2), got.NonFinite)
	assert.Equal(t, 1.0, got.Min)
	assert.Equal(t, 3.0, got.Max)
	assert.InDelta(t, 2.0, got.Mean, 1e-9)
}

func TestNominalColumnStats(t *testing.T) {
	s := schema.New([]string{"city"})
	s.Columns[0].Type = schema.TypeString
	s.Columns[0].LOM = schema.LOMNominal

	e := NewEngine(s)
	for _, v := range []interface{}{"NYC", "LA", "NYC", "", nil, "Chicago"} {
		e.UpdateRow([]interface{}{v})
	}

	got := e.Finalize()[0]
	assert.Equal(t, int64(4), got.Count)
	assert.Equal(t, int64(2), got.Nulls)
	assert.Equal(t, 3, got.NUniques)
	assert.Equal(t, int64(2), got.Values["NYC"])
	assert.Equal(t, 2, got.MinLen)
	assert.Equal(t, 7, got.MaxLen)
	assert.False(t, got.ValuesTruncated)
}

func TestDistinctValueTallyBounded(t *testing.T) {
	s := schema.New([]string{"id"})
	s.Columns[0].LOM = schema.LOMNominal

	e := NewEngine(s)
	for i := 0; i < maxTrackedValues*3; i++ {
		e.Update(0, string(rune('a'+i%26))+string(rune('a'+(i/26)%26))+string(rune('a'+i/676)))
	}

	got := e.Finalize()[0]
	assert.Equal(t, maxTrackedValues, got.NUniques)
	assert.True(t, got.ValuesTruncated)
}

func TestFinalizeIsIncremental(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	e.UpdateRow([]interface{}{1.0})

	first := e.Finalize()[0]
	assert.Equal(t, int64(1), first.Count)

	e.UpdateRow([]interface{}{3.0})
	second := e.Finalize()[0]
	assert.Equal(t, int64(2), second.Count)
	assert.InDelta(t, 2.0, second.Mean, 1e-9)
}

func TestSetLOMAfterAccumulation(t *testing.T) {
	// Mirrors the fused pipeline: the LOM is only known after the pass.
	s := schema.New([]string{"x"})
	e := NewEngine(s)
	for _, v := range []interface{}{"1", "2", "3"} {
		e.UpdateRow([]interface{}{v})
	}

	asNominal := e.Finalize()[0]
	assert.Equal(t, 3, asNominal.NUniques)

	e.SetLOM(0, schema.LOMInterval)
	asInterval := e.Finalize()[0]
	assert.Equal(t, int64(3), asInterval.Count)
	assert.InDelta(t, 2.0, asInterval.Mean, 1e-9)
	assert.Equal(t, 1.0, asInterval.Min)
	assert.Equal(t, 3.0, asInterval.Max)
}

func TestSampleStride(t *testing.T) {
	e := NewEngine(numericSchema("x"))
	e.SampleStride = 10
	for i := 0; i < 100; i++ {
		e.UpdateRow([]interface{}{float64(i)})
	}

	got := e.Finalize()[0]
	assert.Equal(t, int64(10), got.Count)
	assert.Equal(t, int64(100), e.Rows())
}

func TestRunParallelMatchesSequential(t *testing.T) {
	width := 8
	names := make([]string, width)
	for i := range names {
		names[i] = string(rune('a' + i))
	}

	rows := make([][]interface{}, 1000)
	rng := rand.New(rand.NewSource(11))
	for i := range rows {
		row := make([]interface{}, width)
		for j := range row {
			row[j] = rng.Float64() * 100
		}
		rows[i] = row
	}

	seq := NewEngine(numericSchema(names...))
	for _, row := range rows {
		seq.UpdateRow(row)
	}
	want := seq.Finalize()

	par := NewEngine(numericSchema(names...))
	ch := make(chan []interface{}, 32)
	go func() {
		defer close(ch)
		for _, row := range rows {
			ch <- row
		}
	}()
	require.NoError(t, par.RunParallel(context.Background(), ch, 4))
	got := par.Finalize()

	require.Len(t, got, width)
	for i := range want {
		assert.Equal(t, want[i].Count, got[i].Count)
		assert.Equal(t, want[i].Min, got[i].Min)
		assert.Equal(t, want[i].Max, got[i].Max)
		assert.InDelta(t, want[i].Mean, got[i].Mean, 1e-9)
		assert.InDelta(t, want[i].Variance, got[i].Variance, 1e-6)
	}
}
