package contextpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlternatingLayout(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	out := MitigatePositionBias(items, BiasAlternating)

	// Odd positions front in order, even positions appended reversed
	assert.Equal(t, []int{1, 3, 5, 7, 6, 4, 2}, out)

	// Strongest two items occupy both ends
	assert.Equal(t, 1, out[0])
	assert.Equal(t, 2, out[len(out)-1])
}

func TestAlternatingPreservesAllItems(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := MitigatePositionBias(items, BiasAlternating)
	assert.ElementsMatch(t, items, out)
	assert.Len(t, out, len(items))
}

func TestMitigationSkippedBelowMinimum(t *testing.T) {
	items := []int{1, 2, 3, 4}
	out := MitigatePositionBias(items, BiasAlternating)
	assert.Equal(t, items, out)
}

func TestMitigationOffMode(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	out := MitigatePositionBias(items, BiasOff)
	assert.Equal(t, items, out)
}

func TestMitigationDoesNotModifyInput(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	_ = MitigatePositionBias(items, BiasAlternating)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, items)
}

func TestBookendsLayout(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := MitigatePositionBias(items, BiasBookends)

	require.Len(t, out, len(items))
	assert.ElementsMatch(t, items, out)

	// Top 20% (items 1 and 2) pinned to the edges
	assert.Equal(t, 1, out[0])
	assert.Equal(t, 2, out[len(out)-1])
	// Middle keeps its original order
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10}[:8], append([]int(nil), out[1:len(out)-1]...))
}
