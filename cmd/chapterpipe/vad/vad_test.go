package vad

import (
	"testing"

	"github.com/streamer45/silero-vad-go/speech"
	"github.com/stretchr/testify/require"
)

// fakeSegmentDetector returns a fixed, unpadded segment list, mirroring
// what speech.Detector would return now that loadSession forces
// SpeechPadMs to 0 on the underlying model.
type fakeSegmentDetector struct {
	segments []speech.Segment
}

func (f fakeSegmentDetector) Reset() error { return nil }

func (f fakeSegmentDetector) Detect(_ []float32) ([]speech.Segment, error) {
	return f.segments, nil
}

func TestDetectPadsUnpaddedSegmentsExactlyOnce(t *testing.T) {
	r := &Runner{
		cfg: Config{
			SampleRate:  16000,
			MinSpeechMs: 0,
			SpeechPadMs: 100,
		},
		detector: fakeSegmentDetector{
			segments: []speech.Segment{{SpeechStartAt: 5, SpeechEndAt: 6}},
		},
	}

	samples := make([]float32, 20*16000)
	intervals, err := r.Detect(samples)
	require.NoError(t, err)
	require.Len(t, intervals, 1)

	// Single 100ms pad each side: [5,6] -> [4.9, 6.1]. Had SpeechPadMs
	// also been baked into the stub's segment (double-padding), this
	// width would be 1.4s instead of 1.2s.
	require.InDelta(t, 4.9, intervals[0].Start, 1e-9)
	require.InDelta(t, 6.1, intervals[0].End, 1e-9)
	require.InDelta(t, 1.2, intervals[0].End-intervals[0].Start, 1e-9)
}

func TestNewRunnerRejectsUnsupportedSampleRate(t *testing.T) {
	_, err := NewRunner(Config{SampleRate: 44100})
	require.Error(t, err)
}

func TestNewRunnerAccepts8kAnd16k(t *testing.T) {
	_, err := NewRunner(Config{SampleRate: 8000})
	require.NoError(t, err)
	_, err = NewRunner(Config{SampleRate: 16000})
	require.NoError(t, err)
}

func TestPadAndRedistributeSimplePadding(t *testing.T) {
	intervals := []Interval{{Start: 5, End: 6}}
	padded := padAndRedistribute(intervals, 100, 20)
	require.Equal(t, []Interval{{Start: 4.9, End: 6.1}}, padded)
}

func TestPadAndRedistributeClampsToClipBounds(t *testing.T) {
	intervals := []Interval{{Start: 0.05, End: 19.98}}
	padded := padAndRedistribute(intervals, 100, 20)
	require.Equal(t, 0.0, padded[0].Start)
	require.Equal(t, 20.0, padded[0].End)
}

func TestPadAndRedistributeSplitsOverlappingGapInHalf(t *testing.T) {
	// Gap between the two raw intervals is 0.1s; each side wants 0.2s of
	// padding (400ms total), more than the gap provides. Each side should
	// receive half of the 0.1s gap.
	intervals := []Interval{{Start: 1, End: 2}, {Start: 2.1, End: 3}}
	padded := padAndRedistribute(intervals, 200, 10)

	require.InDelta(t, 2.05, padded[0].End, 1e-9)
	require.InDelta(t, 2.05, padded[1].Start, 1e-9)
	require.Less(t, padded[0].End, padded[1].Start+1e-9)
}

func TestPadAndRedistributeEmpty(t *testing.T) {
	require.Nil(t, padAndRedistribute(nil, 100, 10))
}
