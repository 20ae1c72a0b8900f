package sttclient

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempModelFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "model-*.bin")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestConfigIsValidRejectsMissingBinaryPath(t *testing.T) {
	cfg := Config{ModelPath: tempModelFile(t), NumThreads: 1}
	err := cfg.IsValid()
	require.Error(t, err)
}

func TestConfigIsValidRejectsOutOfRangeThreads(t *testing.T) {
	cfg := Config{BinaryPath: "/bin/true", ModelPath: tempModelFile(t), NumThreads: runtime.NumCPU() + 1}
	err := cfg.IsValid()
	require.Error(t, err)
}

func TestParseSegmentsPhraseLevel(t *testing.T) {
	raw := []byte(`{"segments":[{"start":0.0,"end":1.5,"text":"hello jarvis"}]}`)
	segments, source, err := parseSegments(raw)
	require.NoError(t, err)
	require.Equal(t, "phrase", source)
	require.Len(t, segments, 1)
	require.Equal(t, "hello jarvis", segments[0].Text)
}

func TestParseSegmentsTokenLevel(t *testing.T) {
	raw := []byte(`{"segments":[{"start":0.0,"end":1.5,"text":"hello jarvis","tokens":[{"start":0.0,"end":0.5,"text":"hello"},{"start":0.5,"end":1.5,"text":"jarvis"}]}]}`)
	segments, source, err := parseSegments(raw)
	require.NoError(t, err)
	require.Equal(t, "tokens", source)
	require.Len(t, segments, 2)
	require.InDelta(t, 0.5, segments[0].End, 1e-9)
	require.InDelta(t, 1.5, segments[1].End, 1e-9)
	require.Equal(t, "hello", segments[0].Text)
	require.Equal(t, "jarvis", segments[1].Text)
}

func TestParseSegmentsMalformedJSON(t *testing.T) {
	_, _, err := parseSegments([]byte("not json"))
	require.Error(t, err)
}

func TestParseSegmentsEmpty(t *testing.T) {
	segments, source, err := parseSegments([]byte(`{"segments":[]}`))
	require.NoError(t, err)
	require.Equal(t, "phrase", source)
	require.Empty(t, segments)
}
