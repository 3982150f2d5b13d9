package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterFixture() *Dataset {
	nan := math.NaN()
	return MustNew("fixture",
		Floats("T", 15, nan, 17, 18, math.Inf(1), 20),
		Floats("S", 36, 37, nan, 38, 36.5, 37.2),
		Texts("V", "a", "b", "c", "", "e", "f"),
	)
}

func TestFilterValidKeepsOnlyCompleteRows(t *testing.T) {
	d := filterFixture()
	cols := []string{"T", "S"}
	out := FilterValid(d, cols)

	assert.Equal(t, []int{0, 3, 5}, out.RowIDs())
	for i := 0; i < out.Len(); i++ {
		for _, c := range cols {
			assert.True(t, out.Valid(c, i))
		}
	}
	kept := map[int]bool{}
	for _, id := range out.RowIDs() {
		kept[id] = true
	}
	for i := 0; i < d.Len(); i++ {
		if kept[i] {
			continue
		}
		assert.False(t, d.Valid("T", i) && d.Valid("S", i), "row %d dropped without a missing value", i)
	}
}

func TestFilterValidIdempotent(t *testing.T) {
	d := filterFixture()
	cols := []string{"T", "V"}
	once := FilterValid(d, cols)
	twice := FilterValid(once, cols)
	assert.Equal(t, once.RowIDs(), twice.RowIDs())
}

func TestFilterValidDoesNotMutateInput(t *testing.T) {
	d := filterFixture()
	_ = FilterValid(d, []string{"T", "S", "V"})
	assert.Equal(t, 6, d.Len())
	tv, err := d.Float("T")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(tv[1]))
}

func TestFilterValidNoColumnsReturnsInput(t *testing.T) {
	d := filterFixture()
	assert.Same(t, d, FilterValid(d, nil))
}

func TestFilterValidEmptyResultIsMarkerNotError(t *testing.T) {
	d := filterFixture()
	out := FilterValid(d, []string{"DOES-NOT-EXIST"})
	require.NotNil(t, out)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, d.Columns(), out.Columns())
}
