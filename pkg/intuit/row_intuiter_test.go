package intuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowpack/mpr/pkg/errors"
)

func cells(vals ...interface{}) []interface{} { return vals }

func TestIntuitRowsBannerAndHeader(t *testing.T) {
	sample := [][]interface{}{
		cells("Report generated 2020"),
		cells(""),
		cells("Name", "Age", "City"),
		cells("Alice", "30", "NYC"),
		cells("Bob", "25", "LA"),
	}

	spec, err := IntuitRows(sample)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, spec.HeaderRows)
	assert.Equal(t, 3, spec.DataStart)
	assert.Equal(t, []int{0}, spec.CommentRows)
}

func TestIntuitRowsNoHeader(t *testing.T) {
	sample := [][]interface{}{
		cells("Alice", "30", "NYC"),
		cells("Bob", "25", "LA"),
		cells("Carol", "41", "SF"),
	}

	spec, err := IntuitRows(sample)
	require.NoError(t, err)

	assert.False(t, spec.HasHeaders())
	assert.Equal(t, 0, spec.DataStart)
}

func TestIntuitRowsEmptySample(t *testing.T) {
	_, err := IntuitRows(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientSample(err))

	_, err = IntuitRows([][]interface{}{})
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientSample(err))
}

func TestIntuitRowsMultiRowHeader(t *testing.T) {
	sample := [][]interface{}{
		cells("Population Survey"),
		cells("Total", "Male", "Female"),
		cells("Estimate", "Estimate", "Estimate"),
		cells("1000", "490", "510"),
		cells("2000", "980", "1020"),
		cells("1500", "740", "760"),
	}

	spec, err := IntuitRows(sample)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, spec.HeaderRows)
	assert.Equal(t, 3, spec.DataStart)
	assert.Equal(t, []int{0}, spec.CommentRows)
}

func TestIntuitRowsNumericOnlyData(t *testing.T) {
	sample := [][]interface{}{
		cells("a", "b", "c"),
		cells("1", "2", "3"),
		cells("4", "5", "6"),
	}

	spec, err := IntuitRows(sample)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, spec.HeaderRows)
	assert.Equal(t, 1, spec.DataStart)
}

func TestCoalesceHeaders(t *testing.T) {
	rows := [][]interface{}{
		cells("Total", "Male", ""),
		cells("Estimate", "Estimate", "Notes"),
	}

	names := CoalesceHeaders(rows)
	assert.Equal(t, []string{"Total Estimate", "Male Estimate", "Notes"}, names)
}

func TestCoalesceHeadersSingleRow(t *testing.T) {
	names := CoalesceHeaders([][]interface{}{cells("Name", "Age", "City")})
	assert.Equal(t, []string{"Name", "Age", "City"}, names)
}

func TestRowSignatureShapes(t *testing.T) {
	assert.Equal(t, "ana", rowSignature(cells("Alice", "30", "NYC")))
	assert.Equal(t, "b", rowSignature(cells("")))
	assert.Equal(t, "nnn", rowSignature(cells(1, 2.5, "3")))
}
