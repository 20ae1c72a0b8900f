package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGatherReflectsIncrements(t *testing.T) {
	before, err := Gather()
	require.NoError(t, err)

	ChaptersProcessed.Inc()
	EditFlags.Inc()
	RecordSkip(SkipReasonBadTake)

	after, err := Gather()
	require.NoError(t, err)

	require.Equal(t, before.ChaptersProcessed+1, after.ChaptersProcessed)
	require.Equal(t, before.EditFlags+1, after.EditFlags)
	require.Equal(t, before.Skipped[string(SkipReasonBadTake)]+1, after.Skipped[string(SkipReasonBadTake)])
}
