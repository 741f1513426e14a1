// Package schema defines the resolved column model for MPR container files:
// a closed set of datatypes, the lattice join used to resolve a column's type
// from mixed observations, and the ordered column descriptors frozen into a
// file's metadata block.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// DataType is one of the closed set of resolved column datatypes.
type DataType uint8

const (
	// TypeNone is the dedicated type for columns where every observation was
	// null or empty. Never silently coerced to string.
	TypeNone DataType = iota
	// TypeBool is a boolean column
	TypeBool
	// TypeInt is an integer column
	TypeInt
	// TypeFloat is a floating point column
	TypeFloat
	// TypeDatetime is a date/time column
	TypeDatetime
	// TypeString is the least constrained type; malformed values land here
	TypeString

	numTypes
)

var typeNames = [numTypes]string{
	TypeNone:     "none",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeDatetime: "datetime",
	TypeString:   "string",
}

// String returns the on-disk name of the datatype
func (t DataType) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return "unknown"
}

// ParseDataType maps an on-disk type name back to a DataType
func ParseDataType(name string) (DataType, error) {
	for t, n := range typeNames {
		if n == name {
			return DataType(t), nil
		}
	}
	return TypeString, fmt.Errorf("unknown datatype: %q", name)
}

// IsNumeric reports whether the type supports arithmetic statistics
func (t DataType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// joinTable is the complete join operation over the type lattice. TypeNone is
// the bottom element, TypeString the top; TypeInt is below TypeFloat; bool,
// float and datetime are pairwise incomparable and join to string. The table
// is symmetric and its diagonal is the identity, which together with the
// lattice structure makes Join commutative, associative and idempotent.
var joinTable = [numTypes][numTypes]DataType{
	//                  none          bool        int         float       datetime      string
	TypeNone:     {TypeNone, TypeBool, TypeInt, TypeFloat, TypeDatetime, TypeString},
	TypeBool:     {TypeBool, TypeBool, TypeString, TypeString, TypeString, TypeString},
	TypeInt:      {TypeInt, TypeString, TypeInt, TypeFloat, TypeString, TypeString},
	TypeFloat:    {TypeFloat, TypeString, TypeFloat, TypeFloat, TypeString, TypeString},
	TypeDatetime: {TypeDatetime, TypeString, TypeString, TypeString, TypeDatetime, TypeString},
	TypeString:   {TypeString, TypeString, TypeString, TypeString, TypeString, TypeString},
}

// Join resolves the combined datatype of two observations
func Join(a, b DataType) DataType {
	if a >= numTypes || b >= numTypes {
		return TypeString
	}
	return joinTable[a][b]
}

// LOM is the level of measurement of a column, used to select which
// statistics are meaningful for it.
type LOM byte

const (
	// LOMNominal marks categorical columns, usually strings
	LOMNominal LOM = 'n'
	// LOMOrdinal marks columns that rank but don't subtract, like dates
	LOMOrdinal LOM = 'o'
	// LOMInterval marks numeric columns with defined subtraction
	LOMInterval LOM = 'i'
)

// LOMFor returns the level of measurement implied by a resolved datatype
func LOMFor(t DataType) LOM {
	switch {
	case t.IsNumeric():
		return LOMInterval
	case t == TypeDatetime:
		return LOMOrdinal
	default:
		return LOMNominal
	}
}

// TypeCounts records how many observations of each value-shape category a
// column accumulated during type intuition. Persisted into the column
// descriptor so readers can see how confident the resolution was.
type TypeCounts struct {
	Nones  int `msgpack:"nones"`
	Bools  int `msgpack:"bools"`
	Ints   int `msgpack:"ints"`
	Floats int `msgpack:"floats"`
	Times  int `msgpack:"datetimes"`
	Strs   int `msgpack:"strs"`
}

// Total returns the number of observations recorded
func (tc TypeCounts) Total() int {
	return tc.Nones + tc.Bools + tc.Ints + tc.Floats + tc.Times + tc.Strs
}

// Column describes one column of a committed schema
type Column struct {
	// Pos is the 0-based ordinal position; stable, matches row-array order
	Pos int `msgpack:"pos"`
	// Name is the column name, possibly synthesized as col0, col1, ...
	Name string `msgpack:"name"`
	// Type is the resolved datatype
	Type DataType `msgpack:"type"`
	// Nullable is set when any null/empty observation was recorded
	Nullable bool `msgpack:"nullable"`
	// LOM hints which statistics apply to this column
	LOM LOM `msgpack:"lom"`
	// Counts carries the type evidence that resolved this column
	Counts TypeCounts `msgpack:"type_counts"`
	// MinLen and MaxLen bound the observed string lengths
	MinLen int `msgpack:"min_len"`
	MaxLen int `msgpack:"max_len"`
	// Description is free-form, carried from source metadata when present
	Description string `msgpack:"description,omitempty"`
}

// Schema is an ordered sequence of column descriptors. Immutable once
// committed to a file; column order matches row-array order.
type Schema struct {
	Columns []Column `msgpack:"columns"`
}

// Width returns the number of columns
func (s *Schema) Width() int {
	if s == nil {
		return 0
	}
	return len(s.Columns)
}

// Names returns the column names in order
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the descriptor at the given position
func (s *Schema) Column(pos int) (*Column, error) {
	if pos < 0 || pos >= len(s.Columns) {
		return nil, fmt.Errorf("column position %d out of range [0,%d)", pos, len(s.Columns))
	}
	return &s.Columns[pos], nil
}

// New builds a schema from column names. Empty names are synthesized as
// colN; all names are mangled to identifier form.
func New(names []string) *Schema {
	cols := make([]Column, len(names))
	for i, name := range names {
		mangled := MangleHeader(name)
		if mangled == "" {
			mangled = fmt.Sprintf("col%d", i)
		}
		cols[i] = Column{Pos: i, Name: mangled, Type: TypeString}
	}
	return &Schema{Columns: cols}
}

// Synthesized builds a schema of width n with synthesized col0..colN-1 names,
// for sources without any header row.
func Synthesized(n int) *Schema {
	names := make([]string, n)
	return New(names)
}

var (
	nonWordRe       = regexp.MustCompile(`[^\w]`)
	underscoreRunRe = regexp.MustCompile(`_+`)
)

// MangleHeader normalizes a raw header cell into an identifier-safe column
// name: trim, lowercase, non-word runs collapsed to single underscores.
func MangleHeader(name string) string {
	s := strings.TrimSpace(name)
	s = nonWordRe.ReplaceAllString(s, "_")
	s = strings.ToLower(s)
	s = underscoreRunRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
