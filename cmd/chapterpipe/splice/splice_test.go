package splice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/timerange"
)

type fakeExtractor struct {
	extractCalls []mediaio.ExtractOptions
	trimCalls    []float64
	concatCalls  [][]string
	fail         error
}

func (f *fakeExtractor) ExtractAccurate(_ context.Context, src, dst string, opts mediaio.ExtractOptions) error {
	if f.fail != nil {
		return f.fail
	}
	f.extractCalls = append(f.extractCalls, opts)
	return os.WriteFile(dst, []byte(dst+":segment"), 0o644)
}

func (f *fakeExtractor) StreamCopyTrim(_ context.Context, src, dst string, end float64) error {
	f.trimCalls = append(f.trimCalls, end)
	return os.WriteFile(dst, []byte(src+":trim"), 0o644)
}

func (f *fakeExtractor) Concat(_ context.Context, parts []string, dst string, crf int, preset, audioCodec, audioBitrate string) error {
	f.concatCalls = append(f.concatCalls, parts)
	return os.WriteFile(dst, []byte("concatenated"), 0o644)
}

// fakeSpeechChecker reports speech presence by path suffix, so tests can
// control which segments survive.
type fakeSpeechChecker struct {
	silentPaths map[string]bool
}

func (f fakeSpeechChecker) HasSpeech(_ context.Context, path string) (bool, error) {
	return !f.silentPaths[path], nil
}

func newSplicer(t *testing.T, ext *fakeExtractor, silent map[string]bool) *Splicer {
	dir := t.TempDir()
	return &Splicer{
		Extractor: ext,
		Speech:    fakeSpeechChecker{silentPaths: silent},
		TempDir:   dir,
		Options: RenderOptions{
			VideoCRF:     18,
			VideoPreset:  "medium",
			AudioCodec:   "aac",
			AudioBitrate: "192k",
		},
	}
}

func TestSpliceFullKeepCopiesSourceUnchanged(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	s := newSplicer(t, ext, nil)

	keep, err := s.Splice(context.Background(), src, dst, 100, nil)
	require.NoError(t, err)
	require.Len(t, keep, 1)
	require.InDelta(t, 0, keep[0].Start, 1e-9)
	require.InDelta(t, 100, keep[0].End, 1e-9)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "original", string(content))
	require.Empty(t, ext.extractCalls)
	require.Empty(t, ext.trimCalls)
}

func TestSpliceTailOnlyCutUsesStreamCopyTrim(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	s := newSplicer(t, ext, nil)

	cuts := []timerange.Range{{Start: 40, End: 100}}
	keep, err := s.Splice(context.Background(), src, dst, 100, cuts)
	require.NoError(t, err)
	require.Len(t, keep, 1)
	require.InDelta(t, 40, keep[0].End, 1e-9)
	require.Len(t, ext.trimCalls, 1)
	require.InDelta(t, 40, ext.trimCalls[0], 1e-9)
}

func TestSpliceGeneralDropsSilentSegmentsAndConcatenatesSurvivors(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	tempDir := t.TempDir()
	silentSegment := filepath.Join(tempDir, "segment-001.mkv")
	s := &Splicer{
		Extractor: ext,
		Speech:    fakeSpeechChecker{silentPaths: map[string]bool{silentSegment: true}},
		TempDir:   tempDir,
		Options:   RenderOptions{VideoCRF: 18, VideoPreset: "medium", AudioCodec: "aac", AudioBitrate: "192k"},
	}

	// Cuts in the middle force a 3-segment "general" split.
	cuts := []timerange.Range{{Start: 20, End: 25}, {Start: 50, End: 55}}
	keep, err := s.Splice(context.Background(), src, dst, 100, cuts)
	require.NoError(t, err)
	require.Len(t, keep, 2) // one of the three keep segments was silent and dropped

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "concatenated", string(content))
	require.Len(t, ext.concatCalls, 1)
	require.Len(t, ext.concatCalls[0], 2)
}

func TestSpliceGeneralSingleSurvivorCopiesDirectly(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	tempDir := t.TempDir()
	silentFirst := filepath.Join(tempDir, "segment-000.mkv")
	s := &Splicer{
		Extractor: ext,
		Speech:    fakeSpeechChecker{silentPaths: map[string]bool{silentFirst: true}},
		TempDir:   tempDir,
		Options:   RenderOptions{VideoCRF: 18, VideoPreset: "medium", AudioCodec: "aac", AudioBitrate: "192k"},
	}

	cuts := []timerange.Range{{Start: 20, End: 25}}
	keep, err := s.Splice(context.Background(), src, dst, 100, cuts)
	require.NoError(t, err)
	require.Len(t, keep, 1)
	require.Empty(t, ext.concatCalls)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tempDir, "segment-001.mkv")+":segment", string(content))
}

func TestSpliceEntireClipRemovedReturnsSpliceError(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	s := newSplicer(t, ext, nil)

	cuts := []timerange.Range{{Start: 0, End: 100}}
	_, err := s.Splice(context.Background(), src, dst, 100, cuts)
	require.Error(t, err)
}

func TestSpliceGeneralNoSpeechInAnySegmentReturnsSpliceError(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "src.mkv")
	require.NoError(t, os.WriteFile(src, []byte("original"), 0o644))
	dst := filepath.Join(srcDir, "dst.mkv")

	ext := &fakeExtractor{}
	tempDir := t.TempDir()
	s := &Splicer{
		Extractor: ext,
		Speech: fakeSpeechChecker{silentPaths: map[string]bool{
			filepath.Join(tempDir, "segment-000.mkv"): true,
			filepath.Join(tempDir, "segment-001.mkv"): true,
		}},
		TempDir: tempDir,
		Options: RenderOptions{VideoCRF: 18, VideoPreset: "medium", AudioCodec: "aac", AudioBitrate: "192k"},
	}

	cuts := []timerange.Range{{Start: 20, End: 25}}
	_, err := s.Splice(context.Background(), src, dst, 100, cuts)
	require.Error(t, err)
}
