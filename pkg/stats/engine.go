package stats

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rowpack/mpr/pkg/schema"
)

// Engine accumulates statistics for every column of a schema. Updates are
// synchronous and in document order; Finalize may be called at any time and
// reflects all updates seen so far.
type Engine struct {
	cols []*accumulator
	rows int64

	// SampleStride, when > 1, makes UpdateRow process only every Nth row.
	// Set by callers that know the total row count and want the original
	// sampled-statistics behavior on very large inputs.
	SampleStride int64
}

// NewEngine creates a stats engine for the given schema. Each column's level
// of measurement decides which statistics are accumulated for it.
func NewEngine(s *schema.Schema) *Engine {
	cols := make([]*accumulator, s.Width())
	for i, c := range s.Columns {
		lom := c.LOM
		if lom == 0 {
			lom = schema.LOMFor(c.Type)
		}
		cols[i] = newAccumulator(c.Name, lom)
	}
	return &Engine{cols: cols}
}

// SetLOM reassigns a column's level of measurement. The fused load pipeline
// calls this after type resolution, before Finalize; accumulated state is
// unaffected, only which statistics finalize exposes.
func (e *Engine) SetLOM(col int, lom schema.LOM) {
	if col >= 0 && col < len(e.cols) {
		e.cols[col].lom = lom
	}
}

// Width returns the number of columns tracked
func (e *Engine) Width() int { return len(e.cols) }

// Rows returns how many rows have been folded in
func (e *Engine) Rows() int64 { return e.rows }

// Update folds one cell into the given column's accumulator
func (e *Engine) Update(col int, v interface{}) {
	if col < 0 || col >= len(e.cols) {
		return
	}
	e.cols[col].update(v)
}

// UpdateRow folds one row, cell by cell in column order. Short rows null-pad;
// extra cells are ignored.
func (e *Engine) UpdateRow(row []interface{}) {
	e.rows++
	if e.SampleStride > 1 && (e.rows-1)%e.SampleStride != 0 {
		return
	}
	for i := range e.cols {
		if i < len(row) {
			e.cols[i].update(row[i])
		} else {
			e.cols[i].update(nil)
		}
	}
}

// Finalize returns the statistics accumulated so far, one per column
func (e *Engine) Finalize() []ColumnStats {
	out := make([]ColumnStats, len(e.cols))
	for i, acc := range e.cols {
		out[i] = acc.finalize()
	}
	return out
}

// RunParallel consumes an entire row channel with column accumulators fanned
// out across workers. Columns are independent within a row, so each worker
// owns a disjoint column range and no accumulator is shared. Results land in
// the engine exactly as if UpdateRow had been called sequentially.
func (e *Engine) RunParallel(ctx context.Context, rows <-chan []interface{}, workers int) error {
	if workers <= 1 || len(e.cols) <= 1 {
		for row := range rows {
			e.UpdateRow(row)
		}
		return ctx.Err()
	}
	if workers > len(e.cols) {
		workers = len(e.cols)
	}

	feeds := make([]chan []interface{}, workers)
	for i := range feeds {
		feeds[i] = make(chan []interface{}, 64)
	}

	g, ctx := errgroup.WithContext(ctx)

	span := (len(e.cols) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * span
		hi := lo + span
		if hi > len(e.cols) {
			hi = len(e.cols)
		}
		feed := feeds[w]
		g.Go(func() error {
			for row := range feed {
				for i := lo; i < hi; i++ {
					if i < len(row) {
						e.cols[i].update(row[i])
					} else {
						e.cols[i].update(nil)
					}
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, feed := range feeds {
				close(feed)
			}
		}()
		for row := range rows {
			e.rows++
			if e.SampleStride > 1 && (e.rows-1)%e.SampleStride != 0 {
				continue
			}
			for _, feed := range feeds {
				select {
				case feed <- row:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	})

	return g.Wait()
}
