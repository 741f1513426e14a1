// Package stats computes per-column statistics in a single pass over a row
// stream, using constant memory per column regardless of row count. Numeric
// columns get a numerically stable running mean/variance (Welford update);
// non-numeric columns get count, null count and string-length bounds, plus a
// bounded tally of the most frequent values.
package stats

import (
	"math"
	"strconv"
	"strings"

	"github.com/rowpack/mpr/pkg/intuit"
	"github.com/rowpack/mpr/pkg/schema"
)

// maxTrackedValues bounds the distinct-value tally per nominal column. Once a
// column exceeds it, only already seen values keep counting and the overflow
// flag is set.
const maxTrackedValues = 100

// ColumnStats is the finalized statistics for one column, persisted into the
// container metadata.
type ColumnStats struct {
	Name string     `msgpack:"name"`
	LOM  schema.LOM `msgpack:"lom"`

	Count     int64 `msgpack:"count"`
	Nulls     int64 `msgpack:"nulls"`
	NonFinite int64 `msgpack:"non_finite,omitempty"`

	// Numeric statistics, meaningful when LOM is interval
	Min      float64 `msgpack:"min"`
	Max      float64 `msgpack:"max"`
	Mean     float64 `msgpack:"mean"`
	Variance float64 `msgpack:"variance"`
	StdDev   float64 `msgpack:"std"`

	// String-length bounds, meaningful for every column
	MinLen int `msgpack:"min_len"`
	MaxLen int `msgpack:"max_len"`

	// Distinct-value tally for nominal/ordinal columns
	NUniques        int              `msgpack:"nuniques"`
	Values          map[string]int64 `msgpack:"uvalues,omitempty"`
	ValuesTruncated bool             `msgpack:"uvalues_truncated,omitempty"`
}

// accumulator holds the running state for one column
type accumulator struct {
	name string
	lom  schema.LOM

	count     int64
	nulls     int64
	nonFinite int64

	// Welford running mean/variance
	n    int64
	mean float64
	m2   float64

	hasNum bool
	min    float64
	max    float64

	hasLen bool
	minLen int
	maxLen int

	values    map[string]int64
	truncated bool
}

func newAccumulator(name string, lom schema.LOM) *accumulator {
	return &accumulator{name: name, lom: lom, values: make(map[string]int64)}
}

// update folds one cell. Both the numeric and the tally paths accumulate
// regardless of the column's level of measurement, so the LOM can be
// assigned after the pass (the fused load pipeline resolves types in the
// same pass that feeds statistics). finalize exposes only the statistics
// the final LOM calls for.
func (a *accumulator) update(v interface{}) {
	if isNull(v) {
		a.nulls++
		return
	}

	a.count++

	s := intuit.CellString(v)
	if n := len(s); !a.hasLen || n < a.minLen {
		a.minLen = n
		a.hasLen = true
	}
	if n := len(s); n > a.maxLen {
		a.maxLen = n
	}

	if x, ok := toFloat(v); ok {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			a.nonFinite++
		} else {
			a.n++
			delta := x - a.mean
			a.mean += delta / float64(a.n)
			a.m2 += delta * (x - a.mean)

			if !a.hasNum || x < a.min {
				a.min = x
			}
			if !a.hasNum || x > a.max {
				a.max = x
			}
			a.hasNum = true
		}
	}

	if _, seen := a.values[s]; seen {
		a.values[s]++
	} else if len(a.values) < maxTrackedValues {
		a.values[s] = 1
	} else {
		a.truncated = true
	}
}

func (a *accumulator) finalize() ColumnStats {
	cs := ColumnStats{
		Name:      a.name,
		LOM:       a.lom,
		Count:     a.count,
		Nulls:     a.nulls,
		MinLen:    a.minLen,
		MaxLen:    a.maxLen,
	}

	if a.lom == schema.LOMInterval {
		// A non-numeric value in a numeric column counts as null rather
		// than failing the pass.
		cs.Count = a.n + a.nonFinite
		cs.Nulls = a.nulls + (a.count - a.n - a.nonFinite)
		cs.NonFinite = a.nonFinite
		cs.Min = a.min
		cs.Max = a.max
		cs.Mean = a.mean
		if a.n > 1 {
			cs.Variance = a.m2 / float64(a.n-1)
			cs.StdDev = math.Sqrt(cs.Variance)
		}
		return cs
	}

	cs.NUniques = len(a.values)
	cs.ValuesTruncated = a.truncated
	if len(a.values) > 0 {
		cs.Values = make(map[string]int64, len(a.values))
		for k, v := range a.values {
			cs.Values[k] = v
		}
	}
	return cs
}

func isNull(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
