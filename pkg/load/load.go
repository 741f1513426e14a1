// Package load orchestrates a full load: row intuition over a bounded
// prefix, type intuition, statistics, and the container write. The default
// mode fuses everything into a single pass over the source; a conservative
// multi-pass mode re-reads the source once per stage for sources where
// buffering a prefix is the wrong trade.
package load

import (
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rowpack/mpr/pkg/compression"
	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/intuit"
	"github.com/rowpack/mpr/pkg/logger"
	"github.com/rowpack/mpr/pkg/mpr"
	"github.com/rowpack/mpr/pkg/schema"
	"github.com/rowpack/mpr/pkg/source"
	"github.com/rowpack/mpr/pkg/stats"
)

// Mode selects the pass strategy
type Mode int

const (
	// ModeFused buffers a small prefix for row intuition, then computes
	// types and statistics in the same pass that writes rows out.
	ModeFused Mode = iota
	// ModeMultiPass re-opens the source for each stage. Slower, but never
	// holds more than one row in memory per stage.
	ModeMultiPass
)

// Options configures a load
type Options struct {
	Mode Mode

	// SampleRows bounds the prefix examined by row intuition.
	// Defaults to intuit.DefaultSampleRows.
	SampleRows int

	// TypeSampleRows bounds how many data rows feed type intuition.
	// 0 means every data row.
	TypeSampleRows int

	// SampleStride, when > 1, computes statistics from every Nth data row
	SampleStride int64

	// StatsWorkers > 1 fans statistics out across columns
	StatsWorkers int

	// Compression overrides the container's compression config
	Compression *compression.Config
}

func (o *Options) sampleRows() int {
	if o.SampleRows > 0 {
		return o.SampleRows
	}
	return intuit.DefaultSampleRows
}

// Result summarizes a completed load
type Result struct {
	Path     string
	Meta     *mpr.Metadata
	RowCount int64
	Elapsed  time.Duration
}

// Run loads a row source into a container file at dest
func Run(ctx context.Context, src source.Source, dest string, opts Options) (*Result, error) {
	start := time.Now()
	log := logger.Get().With(zap.String("source", src.Name()), zap.String("dest", dest))

	var (
		meta *mpr.Metadata
		err  error
	)
	switch opts.Mode {
	case ModeMultiPass:
		meta, err = runMultiPass(ctx, src, dest, opts)
	default:
		meta, err = runFused(ctx, src, dest, opts)
	}
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	log.Info("load complete",
		zap.Int64("rows", meta.RowCount),
		zap.Int("columns", meta.Width()),
		zap.Duration("elapsed", elapsed))
	return &Result{Path: dest, Meta: meta, RowCount: meta.RowCount, Elapsed: elapsed}, nil
}

// runFused does everything in one read of the source. The prefix needed for
// row intuition is buffered, intuited, then replayed into the writer ahead
// of the remaining stream.
func runFused(ctx context.Context, src source.Source, dest string, opts Options) (*mpr.Metadata, error) {
	it, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	prefix, streamDone, err := readPrefix(it, opts.sampleRows())
	if err != nil {
		return nil, err
	}

	spec, names, width, err := intuitLayout(prefix)
	if err != nil {
		return nil, err
	}

	w, err := mpr.Create(dest, &mpr.WriterConfig{Compression: opts.Compression})
	if err != nil {
		return nil, err
	}
	w.Meta.RowSpec = spec
	w.Meta.Comments = commentText(prefix, spec)
	w.Meta.Source.Name = src.Name()

	ti := intuit.NewTypeIntuiter(width, opts.TypeSampleRows)
	eng := stats.NewEngine(schema.Synthesized(width))
	eng.SampleStride = opts.SampleStride

	feed, join := startStats(ctx, eng, opts.StatsWorkers)

	var dataRows int64
	consume := func(idx int64, row []interface{}) error {
		// Header and banner rows never enter the row block
		if !isData(spec, idx) {
			return nil
		}
		row = normalize(row, width)
		dataRows++
		ti.ProcessRow(row)
		if err := feed(row); err != nil {
			return err
		}
		return w.WriteRow(row)
	}

	abortAll := func(e error) (*mpr.Metadata, error) {
		join()
		w.Abort()
		return nil, e
	}

	idx := int64(0)
	for _, row := range prefix {
		if err := consume(idx, row); err != nil {
			return abortAll(err)
		}
		idx++
	}
	for !streamDone {
		row, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return abortAll(wrapSourceErr(err))
		}
		if err := consume(idx, row); err != nil {
			return abortAll(err)
		}
		idx++
	}
	if err := join(); err != nil {
		w.Abort()
		return nil, err
	}

	sch, err := resolveSchema(ti, names, eng)
	if err != nil {
		w.Abort()
		return nil, err
	}

	finalizeMeta(w.Meta, sch, eng, dataRows)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Meta, nil
}

// runMultiPass re-reads the source once per stage: layout, types, then
// stats + write.
func runMultiPass(ctx context.Context, src source.Source, dest string, opts Options) (*mpr.Metadata, error) {
	// Pass 1: row layout from the prefix
	it, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	prefix, _, err := readPrefix(it, opts.sampleRows())
	it.Close()
	if err != nil {
		return nil, err
	}
	spec, names, width, err := intuitLayout(prefix)
	if err != nil {
		return nil, err
	}

	// Pass 2: column types from the data rows
	ti := intuit.NewTypeIntuiter(width, opts.TypeSampleRows)
	it, err = src.Open(ctx)
	if err != nil {
		return nil, err
	}
	err = eachRow(it, func(idx int64, row []interface{}) error {
		if isData(spec, idx) && !ti.Done() {
			ti.ProcessRow(normalize(row, width))
		}
		return nil
	})
	it.Close()
	if err != nil {
		return nil, err
	}

	eng := stats.NewEngine(schema.Synthesized(width))
	eng.SampleStride = opts.SampleStride
	sch, err := resolveSchema(ti, names, eng)
	if err != nil {
		return nil, err
	}

	// Pass 3: stats and the container write
	w, err := mpr.Create(dest, &mpr.WriterConfig{Compression: opts.Compression})
	if err != nil {
		return nil, err
	}
	w.Meta.RowSpec = spec
	w.Meta.Comments = commentText(prefix, spec)
	w.Meta.Source.Name = src.Name()

	it, err = src.Open(ctx)
	if err != nil {
		w.Abort()
		return nil, err
	}
	defer it.Close()

	feed, join := startStats(ctx, eng, opts.StatsWorkers)

	var dataRows int64
	err = eachRow(it, func(idx int64, row []interface{}) error {
		if !isData(spec, idx) {
			return nil
		}
		row = normalize(row, width)
		dataRows++
		if err := feed(row); err != nil {
			return err
		}
		return w.WriteRow(row)
	})
	if err != nil {
		join()
		w.Abort()
		return nil, err
	}
	if err := join(); err != nil {
		w.Abort()
		return nil, err
	}

	finalizeMeta(w.Meta, sch, eng, dataRows)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Meta, nil
}

// readPrefix buffers up to limit rows. done reports that the source was
// exhausted inside the prefix.
func readPrefix(it source.RowIter, limit int) ([][]interface{}, bool, error) {
	prefix := make([][]interface{}, 0, limit)
	for len(prefix) < limit {
		row, err := it.Next()
		if err == io.EOF {
			return prefix, true, nil
		}
		if err != nil {
			return nil, false, wrapSourceErr(err)
		}
		prefix = append(prefix, row)
	}
	return prefix, false, nil
}

// intuitLayout runs row intuition on the prefix and derives the column
// naming and width for the rest of the pipeline.
func intuitLayout(prefix [][]interface{}) (intuit.RowSpec, []string, int, error) {
	spec, err := intuit.IntuitRows(prefix)
	if err != nil {
		return intuit.RowSpec{}, nil, 0, err
	}

	width := len(spec.DataPattern)
	if width == 0 {
		for _, row := range prefix {
			if len(row) > width {
				width = len(row)
			}
		}
	}

	var names []string
	if spec.HasHeaders() {
		headerRows := make([][]interface{}, 0, len(spec.HeaderRows))
		for _, h := range spec.HeaderRows {
			headerRows = append(headerRows, prefix[h])
		}
		names = intuit.CoalesceHeaders(headerRows)
		for len(names) < width {
			names = append(names, "")
		}
		names = names[:width]
	}
	return spec, names, width, nil
}

// resolveSchema folds resolved types into a schema and aligns the stats
// engine's levels of measurement with it.
func resolveSchema(ti *intuit.TypeIntuiter, names []string, eng *stats.Engine) (*schema.Schema, error) {
	resolved, err := ti.Resolve()
	if err != nil {
		return nil, err
	}

	var sch *schema.Schema
	if names != nil {
		sch = schema.New(names)
	} else {
		sch = schema.Synthesized(len(resolved))
	}
	for i, rc := range resolved {
		col := &sch.Columns[i]
		col.Type = rc.Type
		col.Nullable = rc.Nullable
		col.Counts = rc.Counts
		col.MinLen = rc.MinLen
		col.MaxLen = rc.MaxLen
		col.LOM = schema.LOMFor(rc.Type)
		eng.SetLOM(i, col.LOM)
	}
	return sch, nil
}

// commentText renders the banner rows above the headers so they survive in
// the metadata even though they are not stored in the row block.
func commentText(prefix [][]interface{}, spec intuit.RowSpec) []string {
	var out []string
	for _, c := range spec.CommentRows {
		if c >= len(prefix) {
			continue
		}
		cells := make([]string, 0, len(prefix[c]))
		for _, v := range prefix[c] {
			if s := strings.TrimSpace(intuit.CellString(v)); s != "" {
				cells = append(cells, s)
			}
		}
		out = append(out, strings.Join(cells, " "))
	}
	return out
}

func finalizeMeta(meta *mpr.Metadata, sch *schema.Schema, eng *stats.Engine, dataRows int64) {
	meta.Schema = sch
	meta.Stats = eng.Finalize()
	meta.RowCount = dataRows
	meta.Process.LoadedAt = time.Now().UTC()
	meta.Process.Finalized = true
}

// startStats returns a feed function for data rows and a join that waits
// for any background workers. With one worker both are synchronous.
func startStats(ctx context.Context, eng *stats.Engine, workers int) (func([]interface{}) error, func() error) {
	if workers <= 1 {
		return func(row []interface{}) error {
				eng.UpdateRow(row)
				return nil
			}, func() error {
				return nil
			}
	}

	ch := make(chan []interface{}, 64)
	done := make(chan error, 1)
	go func() {
		done <- eng.RunParallel(ctx, ch, workers)
	}()

	closed := false
	feed := func(row []interface{}) error {
		select {
		case ch <- row:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	join := func() error {
		if !closed {
			closed = true
			close(ch)
		}
		return <-done
	}
	return feed, join
}

func eachRow(it source.RowIter, fn func(int64, []interface{}) error) error {
	idx := int64(0)
	for {
		row, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapSourceErr(err)
		}
		if err := fn(idx, row); err != nil {
			return err
		}
		idx++
	}
}

func isData(spec intuit.RowSpec, idx int64) bool {
	if idx < int64(spec.DataStart) {
		return false
	}
	return spec.DataEnd < 0 || idx <= int64(spec.DataEnd)
}

// normalize pads or truncates a row to the schema width. Stored data rows
// are fixed-arity; ragged source rows degrade to nulls rather than failing
// the load.
func normalize(row []interface{}, width int) []interface{} {
	if len(row) == width {
		return row
	}
	out := make([]interface{}, width)
	copy(out, row)
	return out
}

func wrapSourceErr(err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeIO, "read source row")
}
