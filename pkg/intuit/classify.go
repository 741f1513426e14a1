// Package intuit locates the real table inside messy tabular input. The row
// intuiter finds which rows are headers and where data starts; the type
// intuiter accumulates value-shape evidence per column and resolves a single
// datatype over the schema type lattice.
package intuit

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rowpack/mpr/pkg/schema"
)

// boolLiterals is the recognized boolean literal set. "1" and "0" are
// deliberately excluded: they classify as integers so that numeric columns
// containing them resolve to int rather than string.
var boolLiterals = map[string]bool{
	"true": true, "false": true,
	"yes": true, "no": true,
}

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), // YYYY-MM-DD
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), // MM/DD/YYYY
		regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`), // YYYY/MM/DD
	}
	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), // ISO 8601
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), // SQL timestamp
	}
)

// Classify places a raw cell value into the finest-grained category it
// satisfies, in order of preference: null/empty, boolean, integer, float,
// datetime, string. It never fails; anything unrecognized is a string.
func Classify(v interface{}) schema.DataType {
	switch x := v.(type) {
	case nil:
		return schema.TypeNone
	case bool:
		return schema.TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schema.TypeInt
	case float32:
		return classifyFloat(float64(x))
	case float64:
		return classifyFloat(x)
	case time.Time:
		return schema.TypeDatetime
	case string:
		return classifyString(x)
	case []byte:
		return classifyString(string(x))
	default:
		return schema.TypeString
	}
}

// Whole floats stay floats: a source that produced float64 cells made a type
// statement already, unlike string cells where "3" and "3.5" differ.
func classifyFloat(float64) schema.DataType {
	return schema.TypeFloat
}

func classifyString(s string) schema.DataType {
	s = strings.TrimSpace(s)
	if s == "" {
		return schema.TypeNone
	}
	if boolLiterals[strings.ToLower(s)] {
		return schema.TypeBool
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return schema.TypeInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return schema.TypeFloat
	}
	for _, p := range timestampPatterns {
		if p.MatchString(s) {
			return schema.TypeDatetime
		}
	}
	for _, p := range datePatterns {
		if p.MatchString(s) {
			return schema.TypeDatetime
		}
	}
	return schema.TypeString
}

// CellString renders a raw cell value the way the intuiters and the stats
// engine measure it, without allocating for the common string case.
func CellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return strings.TrimSpace(strconvQuoteFallback(x))
	}
}

func strconvQuoteFallback(v interface{}) string {
	// Rare path for exotic source cell types
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return ""
}
