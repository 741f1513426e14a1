package intuit

import (
	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/schema"
)

// Evidence is the per-column type evidence accumulator. It is an immutable
// value: Observe and Merge return new Evidence rather than mutating, so the
// join properties (order independence, idempotence of resolution) hold by
// construction and accumulators can be fanned out across goroutines safely.
type Evidence struct {
	Counts schema.TypeCounts
	MinLen int
	MaxLen int
}

// Observe returns the evidence extended with one raw cell value
func (e Evidence) Observe(v interface{}) Evidence {
	switch Classify(v) {
	case schema.TypeNone:
		e.Counts.Nones++
		return e
	case schema.TypeBool:
		e.Counts.Bools++
	case schema.TypeInt:
		e.Counts.Ints++
	case schema.TypeFloat:
		e.Counts.Floats++
	case schema.TypeDatetime:
		e.Counts.Times++
	default:
		e.Counts.Strs++
	}

	n := len(CellString(v))
	if e.Counts.Total()-e.Counts.Nones == 1 || n < e.MinLen {
		e.MinLen = n
	}
	if n > e.MaxLen {
		e.MaxLen = n
	}
	return e
}

// Merge combines two evidence values. Commutative and associative; merging
// evidence with itself doubles counts but resolves to the same type.
func (e Evidence) Merge(o Evidence) Evidence {
	merged := Evidence{
		Counts: schema.TypeCounts{
			Nones:  e.Counts.Nones + o.Counts.Nones,
			Bools:  e.Counts.Bools + o.Counts.Bools,
			Ints:   e.Counts.Ints + o.Counts.Ints,
			Floats: e.Counts.Floats + o.Counts.Floats,
			Times:  e.Counts.Times + o.Counts.Times,
			Strs:   e.Counts.Strs + o.Counts.Strs,
		},
		MinLen: e.MinLen,
		MaxLen: e.MaxLen,
	}
	switch {
	case e.observedNonNull() == 0:
		merged.MinLen = o.MinLen
	case o.observedNonNull() > 0 && o.MinLen < merged.MinLen:
		merged.MinLen = o.MinLen
	}
	if o.MaxLen > merged.MaxLen {
		merged.MaxLen = o.MaxLen
	}
	return merged
}

func (e Evidence) observedNonNull() int {
	return e.Counts.Total() - e.Counts.Nones
}

// Resolve joins the observed categories over the type lattice and reports
// whether any null observation makes the column nullable. Feeding the same
// evidence twice cannot change the result: the join only sees which
// categories are present, not how often.
func (e Evidence) Resolve() (schema.DataType, bool) {
	t := schema.TypeNone
	if e.Counts.Bools > 0 {
		t = schema.Join(t, schema.TypeBool)
	}
	if e.Counts.Ints > 0 {
		t = schema.Join(t, schema.TypeInt)
	}
	if e.Counts.Floats > 0 {
		t = schema.Join(t, schema.TypeFloat)
	}
	if e.Counts.Times > 0 {
		t = schema.Join(t, schema.TypeDatetime)
	}
	if e.Counts.Strs > 0 {
		t = schema.Join(t, schema.TypeString)
	}
	return t, e.Counts.Nones > 0
}

// ResolvedColumn is the outcome of type intuition for one column
type ResolvedColumn struct {
	Type     schema.DataType
	Nullable bool
	Counts   schema.TypeCounts
	MinLen   int
	MaxLen   int
}

// TypeIntuiter consumes rows and resolves one datatype per column. Malformed
// cell values never fail it; they degrade the classification toward string.
type TypeIntuiter struct {
	cols        []Evidence
	rowsSeen    int
	sampleLimit int
}

// NewTypeIntuiter creates a type intuiter for the given schema width.
// sampleLimit bounds how many rows ProcessRow will consume; 0 means no bound.
func NewTypeIntuiter(width, sampleLimit int) *TypeIntuiter {
	return &TypeIntuiter{
		cols:        make([]Evidence, width),
		sampleLimit: sampleLimit,
	}
}

// Width returns the schema width the intuiter was built for
func (ti *TypeIntuiter) Width() int { return len(ti.cols) }

// RowsSeen returns how many rows have been consumed
func (ti *TypeIntuiter) RowsSeen() int { return ti.rowsSeen }

// Done reports whether the bounded sample has been consumed
func (ti *TypeIntuiter) Done() bool {
	return ti.sampleLimit > 0 && ti.rowsSeen >= ti.sampleLimit
}

// ProcessRow folds one row into the evidence. Cells beyond the schema width
// are ignored; missing trailing cells count as nulls.
func (ti *TypeIntuiter) ProcessRow(row []interface{}) {
	if ti.Done() {
		return
	}
	ti.rowsSeen++
	for i := range ti.cols {
		if i < len(row) {
			ti.cols[i] = ti.cols[i].Observe(row[i])
		} else {
			ti.cols[i] = ti.cols[i].Observe(nil)
		}
	}
}

// Resolve returns the resolved column types. It errors with
// InsufficientSample when no rows were consumed, rather than guessing.
func (ti *TypeIntuiter) Resolve() ([]ResolvedColumn, error) {
	if ti.rowsSeen == 0 {
		return nil, errors.New(errors.ErrorTypeInsufficientSample,
			"type intuition requires at least one row")
	}

	resolved := make([]ResolvedColumn, len(ti.cols))
	for i, ev := range ti.cols {
		t, nullable := ev.Resolve()
		resolved[i] = ResolvedColumn{
			Type:     t,
			Nullable: nullable,
			Counts:   ev.Counts,
			MinLen:   ev.MinLen,
			MaxLen:   ev.MaxLen,
		}
	}
	return resolved, nil
}
