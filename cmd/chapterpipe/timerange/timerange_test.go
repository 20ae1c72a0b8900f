package timerange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeSortsAndFoldsTouching(t *testing.T) {
	ranges := []Range{
		{Start: 10, End: 12},
		{Start: 0, End: 5},
		{Start: 5.005, End: 8},
	}
	merged, err := Merge(ranges)
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 8}, {Start: 10, End: 12}}, merged)
}

func TestMergeSumNeverExceedsInput(t *testing.T) {
	ranges := []Range{{Start: 0, End: 5}, {Start: 4, End: 9}, {Start: 20, End: 21}}
	merged, err := Merge(ranges)
	require.NoError(t, err)
	require.LessOrEqual(t, Sum(merged), Sum(ranges)+1e-9)

	for i := 1; i < len(merged); i++ {
		require.Greater(t, merged[i].Start, merged[i-1].End)
	}
}

func TestMergeDropsCollapsedRanges(t *testing.T) {
	merged, err := Merge([]Range{{Start: 1, End: 1.0001}, {Start: 2, End: 4}})
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 2, End: 4}}, merged)
}

func TestMergeRejectsNaN(t *testing.T) {
	_, err := Merge([]Range{{Start: math.NaN(), End: 1}})
	require.Error(t, err)
}

func TestSubtractComplement(t *testing.T) {
	domain := Range{Start: 0, End: 30}
	excludes := []Range{{Start: 10, End: 14}, {Start: 20, End: 22}}
	keep, err := Subtract(domain, excludes)
	require.NoError(t, err)
	require.Equal(t, []Range{{Start: 0, End: 10}, {Start: 14, End: 20}, {Start: 22, End: 30}}, keep)
}

func TestSubtractSumInvariant(t *testing.T) {
	domain := Range{Start: 0, End: 30}
	excludes := []Range{{Start: 10, End: 14}, {Start: 12, End: 22}}

	keep, err := Subtract(domain, excludes)
	require.NoError(t, err)

	merged, err := Merge(excludes)
	require.NoError(t, err)

	var overlap float64
	for _, ex := range merged {
		s, e := ex.Start, ex.End
		if s < domain.Start {
			s = domain.Start
		}
		if e > domain.End {
			e = domain.End
		}
		if e > s {
			overlap += e - s
		}
	}

	require.InDelta(t, Sum(domain.slice())-overlap, Sum(keep), 1e-6)
}

func (r Range) slice() []Range { return []Range{r} }

func TestSubtractEmptyDomain(t *testing.T) {
	keep, err := Subtract(Range{Start: 5, End: 5}, []Range{{Start: 1, End: 2}})
	require.NoError(t, err)
	require.Empty(t, keep)
}

func TestSubtractFullyCovered(t *testing.T) {
	keep, err := Subtract(Range{Start: 0, End: 10}, []Range{{Start: 0, End: 10}})
	require.NoError(t, err)
	require.Empty(t, keep)
}

func TestShiftForRemovedBeforeRemovedRanges(t *testing.T) {
	shifted, err := ShiftForRemoved(5, []Range{{Start: 10, End: 12}})
	require.NoError(t, err)
	require.Equal(t, 5.0, shifted)
}

func TestShiftForRemovedAfterRemovedRange(t *testing.T) {
	shifted, err := ShiftForRemoved(20, []Range{{Start: 10, End: 12}})
	require.NoError(t, err)
	require.InDelta(t, 18, shifted, 1e-9)
}

func TestShiftForRemovedInsideRemovedRangeClampsToStart(t *testing.T) {
	shifted, err := ShiftForRemoved(11, []Range{{Start: 10, End: 12}})
	require.NoError(t, err)
	require.InDelta(t, 10, shifted, 1e-9)
}

func TestShiftForRemovedRejectsNaN(t *testing.T) {
	_, err := ShiftForRemoved(math.NaN(), nil)
	require.Error(t, err)
}
