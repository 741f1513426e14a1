package intuit

import (
	"strings"

	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/schema"
)

// DefaultSampleRows is how many leading rows the row intuiter examines
const DefaultSampleRows = 100

// Cell shape codes used in row signatures
const (
	cellNumeric = 'n' // parses as int or float
	cellBlank   = 'b' // nil or empty string
	cellAlpha   = 'a' // short non-numeric token, header-like
	cellOther   = 'x' // long or unclassifiable text
)

// maxHeaderTokenLen bounds what still counts as a header-like token
const maxHeaderTokenLen = 40

// patternMatchThreshold is the fraction of cell shapes that must agree for a
// row to count as matching the data pattern.
const patternMatchThreshold = 0.8

// RowSpec is the outcome of row intuition: which sample rows are headers or
// leading comments, and where real data starts.
type RowSpec struct {
	// HeaderRows lists the row indices holding column headers, in order.
	// Empty when the file has no distinguishable header.
	HeaderRows []int `msgpack:"header_rows"`
	// CommentRows lists non-blank banner/title rows before the header
	CommentRows []int `msgpack:"comment_rows"`
	// DataStart is the first row index containing actual tabular data
	DataStart int `msgpack:"start_row"`
	// DataEnd is the last data row index; -1 means data runs to end of file
	DataEnd int `msgpack:"end_row"`
	// DataPattern is the modal cell-shape signature that identified data rows
	DataPattern string `msgpack:"data_pattern"`
}

// HasHeaders reports whether any header row was found
func (rs RowSpec) HasHeaders() bool { return len(rs.HeaderRows) > 0 }

// cellShape classifies one cell for signature purposes
func cellShape(v interface{}) byte {
	switch Classify(v) {
	case schema.TypeNone:
		return cellBlank
	case schema.TypeInt, schema.TypeFloat:
		return cellNumeric
	default:
		s := strings.TrimSpace(CellString(v))
		if len(s) <= maxHeaderTokenLen && hasLetter(s) {
			return cellAlpha
		}
		return cellOther
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
			return true
		}
	}
	return false
}

// rowSignature builds the shape signature of one row
func rowSignature(row []interface{}) string {
	var sb strings.Builder
	sb.Grow(len(row))
	for _, v := range row {
		sb.WriteByte(cellShape(v))
	}
	return sb.String()
}

func allBlank(sig string) bool {
	for i := 0; i < len(sig); i++ {
		if sig[i] != cellBlank {
			return false
		}
	}
	return true
}

// matchesPattern reports whether a signature agrees with the data pattern in
// at least patternMatchThreshold of its positions. Length must match exactly;
// a banner row of the wrong width never matches.
func matchesPattern(sig, pattern string) bool {
	if len(sig) != len(pattern) || len(sig) == 0 {
		return false
	}
	same := 0
	for i := 0; i < len(sig); i++ {
		if sig[i] == pattern[i] {
			same++
		}
	}
	return float64(same)/float64(len(sig)) >= patternMatchThreshold
}

// headerLike reports whether a row of the data width looks like a header:
// every cell a short non-numeric token, none blank-or-numeric dominated.
func headerLike(sig string, dataWidth int) bool {
	if len(sig) != dataWidth || len(sig) == 0 {
		return false
	}
	alpha := 0
	for i := 0; i < len(sig); i++ {
		switch sig[i] {
		case cellNumeric:
			return false
		case cellAlpha:
			alpha++
		}
	}
	return alpha*2 > len(sig)
}

// IntuitRows examines a bounded prefix of raw rows and decides which rows
// hold column headers and where data begins. The row pattern that repeats
// most often in the sample is taken to be data; contiguous header-like rows
// immediately before the first data row are headers; anything non-blank
// before those is banner/comment noise.
func IntuitRows(sample [][]interface{}) (RowSpec, error) {
	if len(sample) == 0 {
		return RowSpec{}, errors.New(errors.ErrorTypeInsufficientSample,
			"row intuition requires a non-empty sample")
	}

	sigs := make([]string, len(sample))
	for i, row := range sample {
		sigs[i] = rowSignature(row)
	}

	pattern := modalPattern(sigs)
	if pattern == "" {
		// Nothing repeats and nothing is distinguishable; treat everything
		// from the top as data.
		return RowSpec{DataStart: 0, DataEnd: -1}, nil
	}

	dataStart := -1
	for i, sig := range sigs {
		if matchesPattern(sig, pattern) {
			dataStart = i
			break
		}
	}
	if dataStart < 0 {
		return RowSpec{DataStart: 0, DataEnd: -1, DataPattern: pattern}, nil
	}

	spec := RowSpec{DataStart: dataStart, DataEnd: -1, DataPattern: pattern}

	// Contiguous header-like run ending just above the data
	headerTop := dataStart
	for headerTop > 0 && headerLike(sigs[headerTop-1], len(pattern)) {
		headerTop--
	}
	for i := headerTop; i < dataStart; i++ {
		spec.HeaderRows = append(spec.HeaderRows, i)
	}

	for i := 0; i < headerTop; i++ {
		if !allBlank(sigs[i]) {
			spec.CommentRows = append(spec.CommentRows, i)
		}
	}

	return spec, nil
}

// modalPattern finds the most frequent non-blank signature. Ties go to the
// signature seen later in the sample, since banner noise clusters at the top.
func modalPattern(sigs []string) string {
	counts := make(map[string]int, len(sigs))
	last := make(map[string]int, len(sigs))
	for i, sig := range sigs {
		if len(sig) == 0 || allBlank(sig) {
			continue
		}
		counts[sig]++
		last[sig] = i
	}

	best := ""
	for sig, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && last[sig] > last[best]) {
			best = sig
		}
	}
	return best
}

// CoalesceHeaders merges one or more header rows into a single list of
// column names, concatenating per-column cells with a space. Multi-row
// headers ("2010" over "Estimate" and "Margin of Error") become composite
// names.
func CoalesceHeaders(headerRows [][]interface{}) []string {
	width := 0
	for _, row := range headerRows {
		if len(row) > width {
			width = len(row)
		}
	}

	names := make([]string, width)
	for _, row := range headerRows {
		for i := 0; i < width; i++ {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(CellString(row[i]))
			if cell == "" {
				continue
			}
			if names[i] == "" {
				names[i] = cell
			} else {
				names[i] = names[i] + " " + cell
			}
		}
	}
	return names
}
