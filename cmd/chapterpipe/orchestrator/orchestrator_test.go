package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castforge/chapterpipe/chapter"
	"github.com/castforge/chapterpipe/config"
	"github.com/castforge/chapterpipe/loudness"
	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/pipelineerr"
	"github.com/castforge/chapterpipe/sttclient"
	"github.com/castforge/chapterpipe/timerange"
	"github.com/castforge/chapterpipe/transcript"
	"github.com/castforge/chapterpipe/vad"
)

var errTest = errors.New("analysis unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTranscoder records extract/concat calls and writes placeholder
// files so downstream stages have something to read.
type fakeTranscoder struct {
	extracts []mediaio.ExtractOptions
	concats  [][]string
}

func (f *fakeTranscoder) ExtractAccurate(_ context.Context, src, dst string, opts mediaio.ExtractOptions) error {
	f.extracts = append(f.extracts, opts)
	return os.WriteFile(dst, []byte(src+":clip"), 0o644)
}

func (f *fakeTranscoder) ReadSamples(_ context.Context, _ string, _, duration float64, sampleRate int) ([]float32, error) {
	n := int(duration * float64(sampleRate))
	if n <= 0 || n > sampleRate*10 {
		n = sampleRate
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5
	}
	return samples, nil
}

func (f *fakeTranscoder) Concat(_ context.Context, parts []string, dst string, _ int, _, _, _ string) error {
	f.concats = append(f.concats, parts)
	return os.WriteFile(dst, []byte("concatenated"), 0o644)
}

func (f *fakeTranscoder) StreamCopyTrim(_ context.Context, src, dst string, _ float64) error {
	return os.WriteFile(dst, []byte(src+":trim"), 0o644)
}

// fakeNormalizer is a loudness no-op passthrough.
type fakeNormalizer struct {
	failAnalyze bool
}

func (f *fakeNormalizer) Analyze(_ context.Context, _ string) (loudness.Analysis, error) {
	if f.failAnalyze {
		return loudness.Analysis{}, errTest
	}
	return loudness.Analysis{}, nil
}

func (f *fakeNormalizer) Render(_ context.Context, src, dst string, _ loudness.Analysis) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// fakeTranscriber returns the same scripted result for every call,
// letting each test control the transcript its chapters produce.
type fakeTranscriber struct {
	result sttclient.Result
	err    error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _, _ string) (sttclient.Result, error) {
	return f.result, f.err
}

// fakeRefiner passes windows straight through as cut windows, mirroring
// refine.Refiner's contract without touching real samples.
type fakeRefiner struct{}

func (fakeRefiner) Refine(_ context.Context, _ string, _ float64, windows []timerange.Range) ([]timerange.Range, error) {
	return windows, nil
}

// fakeSplicer subtracts cutWindows from [0, clipDuration) and writes a
// placeholder file, returning the surviving ranges like the real one.
type fakeSplicer struct{}

func (fakeSplicer) Splice(_ context.Context, src, dst string, clipDuration float64, cutWindows []timerange.Range) ([]timerange.Range, error) {
	kept, err := timerange.Subtract(timerange.Range{Start: 0, End: clipDuration}, cutWindows)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, []byte(src+":spliced"), 0o644); err != nil {
		return nil, err
	}
	return kept, nil
}

func baseConfig(t *testing.T, outputDir string) config.Config {
	cfg := config.Config{
		InputPath:             filepath.Join(outputDir, "input.mkv"),
		OutputDir:             outputDir,
		WakeWord:              "jarvis",
		CloseWord:             "please",
		CommandStarters:       []string{"bad", "filename", "file", "edit", "note", "split", "new", "combine"},
		CommandTailMaxSeconds: 5,
		MinChapterSeconds:     1,
		MinTrimWindowSeconds:  0.1,
		PreSpeechPadding:      0.2,
		PostSpeechPadding:     0.2,
		RMSWindowMs:           20,
		RMSMinSilenceMs:       200,
		VadSampleRate:         16000,
		ReencodeVideo:         false,
		VideoCRF:              18,
		VideoPreset:           "medium",
		AudioCodec:            "aac",
		AudioBitrate:          "192k",
		NumThreads:            1,
	}
	require.NoError(t, os.MkdirAll(outputDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.InputPath, []byte("source"), 0o644))
	return cfg
}

func newTestPipeline(t *testing.T, cfg config.Config, stt Transcriber) (*Pipeline, *fakeTranscoder) {
	tc := &fakeTranscoder{}
	p, err := New(cfg, "mkv", tc, &fakeNormalizer{}, stt, nil, fakeRefiner{}, fakeSplicer{}, discardLogger())
	require.NoError(t, err)
	return p, tc
}

func TestProcessChapterNoTranscriptionProducesFinalOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = false

	p, tc := newTestPipeline(t, cfg, nil)
	ch := chapter.Chapter{Index: 0, Title: "Intro", Start: 0, End: 10}

	record, finalPath, finalDuration := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusProcessed, record.Status)
	require.NotEmpty(t, record.FinalOutputPath)
	require.Equal(t, record.FinalOutputPath, finalPath)
	require.Greater(t, finalDuration, 0.0)
	require.NotEmpty(t, tc.extracts)
}

func TestProcessChapterShorterThanMinimumSkips(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.MinChapterSeconds = 5
	cfg.EnableTranscription = false

	p, _ := newTestPipeline(t, cfg, nil)
	ch := chapter.Chapter{Index: 0, Title: "Tiny", Start: 0, End: 2}

	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusSkippedInitialShort, record.Status)
	require.Empty(t, finalPath)
}

func TestProcessChapterBadTakeSkips(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = true

	stt := &fakeTranscriber{result: sttclient.Result{
		Segments: []sttclient.Segment{
			{Start: 0, End: 1, Text: "jarvis bad take please"},
		},
	}}
	p, _ := newTestPipeline(t, cfg, stt)
	ch := chapter.Chapter{Index: 0, Title: "Retake", Start: 0, End: 10}

	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusSkippedBadTake, record.Status)
	require.Empty(t, finalPath)
}

func TestProcessChapterFilenameOverrideChangesOutputName(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = true

	stt := &fakeTranscriber{result: sttclient.Result{
		Segments: []sttclient.Segment{
			{Start: 0, End: 1, Text: "jarvis filename custom title please"},
			{Start: 1, End: 9, Text: "plenty of real chapter content follows this point in the recording"},
		},
	}}
	p, _ := newTestPipeline(t, cfg, stt)
	ch := chapter.Chapter{Index: 2, Title: "Original Title", Start: 0, End: 10}

	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusProcessed, record.Status)
	require.Contains(t, finalPath, "custom-title")
}

func TestProcessChapterNevermindCancelsPriorCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = true

	stt := &fakeTranscriber{result: sttclient.Result{
		Segments: []sttclient.Segment{
			{Start: 0, End: 1, Text: "jarvis bad take nevermind please"},
			{Start: 1, End: 9, Text: "plenty of real chapter content follows this point in the recording"},
		},
	}}
	p, _ := newTestPipeline(t, cfg, stt)
	ch := chapter.Chapter{Index: 0, Title: "Keepers", Start: 0, End: 10}

	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusProcessed, record.Status)
	require.NotEmpty(t, finalPath)
}

func TestProcessChapterFallsBackToRawClipWhenLoudnessAnalysisFails(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = false

	tc := &fakeTranscoder{}
	p, err := New(cfg, "mkv", tc, &fakeNormalizer{failAnalyze: true}, nil, nil, fakeRefiner{}, fakeSplicer{}, discardLogger())
	require.NoError(t, err)

	ch := chapter.Chapter{Index: 0, Title: "Intro", Start: 0, End: 10}
	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusProcessed, record.Status)
	require.NotEmpty(t, finalPath)
}

func TestSplicableWindowsExcludesBadTake(t *testing.T) {
	commands := []transcript.Command{
		{Kind: transcript.KindBadTake, Window: timerange.Range{Start: 0, End: 1}},
		{Kind: transcript.KindCombinePrevious, Window: timerange.Range{Start: 1, End: 2}},
		{Kind: transcript.KindEdit, Window: timerange.Range{Start: 2, End: 3}},
		{Kind: transcript.KindNevermind, Window: timerange.Range{Start: 3, End: 4}},
	}

	windows := splicableWindows(commands)

	require.Len(t, windows, 3)
	require.Equal(t, timerange.Range{Start: 1, End: 2}, windows[0])
	require.Equal(t, timerange.Range{Start: 2, End: 3}, windows[1])
	require.Equal(t, timerange.Range{Start: 3, End: 4}, windows[2])
}

func TestCombineWithPreviousOverwritesPreviousFinal(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = true

	prevFinal := filepath.Join(dir, "chapter-01-first.mkv")
	require.NoError(t, os.WriteFile(prevFinal, []byte("previous final content"), 0o644))

	stt := &fakeTranscriber{result: sttclient.Result{
		Segments: []sttclient.Segment{
			{Start: 0, End: 1, Text: "jarvis combine previous please"},
			{Start: 1, End: 9, Text: "plenty of real chapter content follows this point in the recording"},
		},
	}}
	p, _ := newTestPipeline(t, cfg, stt)
	ch := chapter.Chapter{Index: 1, Title: "Second", Start: 0, End: 10}

	record, finalPath, finalDuration := p.processChapter(context.Background(), ch, prevFinal, 20)

	require.Equal(t, chapter.StatusCombinedWithPrevious, record.Status)
	require.Equal(t, prevFinal, record.FinalOutputPath)
	require.Equal(t, prevFinal, finalPath)
	require.Greater(t, finalDuration, 0.0)

	content, err := os.ReadFile(prevFinal)
	require.NoError(t, err)
	require.Equal(t, "concatenated", string(content))
}

func TestProcessChapterCombinePreviousWithNoPriorOutputFallsThroughNormally(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = true

	stt := &fakeTranscriber{result: sttclient.Result{
		Segments: []sttclient.Segment{
			{Start: 0, End: 1, Text: "jarvis combine previous please"},
			{Start: 1, End: 9, Text: "plenty of real chapter content follows this point in the recording"},
		},
	}}
	p, _ := newTestPipeline(t, cfg, stt)
	ch := chapter.Chapter{Index: 0, Title: "First", Start: 0, End: 10}

	record, finalPath, _ := p.processChapter(context.Background(), ch, "", 0)

	require.Equal(t, chapter.StatusProcessed, record.Status)
	require.NotEmpty(t, finalPath)
	require.Contains(t, record.FallbackNote, pipelineerr.ErrCombinePreviousUnavailable.Error())
}

func TestRunWritesPermanentLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = false

	p, _ := newTestPipeline(t, cfg, nil)
	chapters := []mediaio.Chapter{
		{Index: 0, Title: "One", Start: 0, End: 10},
		{Index: 1, Title: "Two", Start: 10, End: 20},
	}

	err := p.Run(context.Background(), chapters)
	require.NoError(t, err)

	for _, name := range []string{"jarvis-warnings.log", "jarvis-edits.log", "jarvis-notes.log"} {
		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, name))
		require.NoError(t, err)
		require.Contains(t, string(data), "Input: "+cfg.InputPath)
	}
}

func TestWriteWarningsLogFormatsStartEndSpans(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	p, _ := newTestPipeline(t, cfg, nil)

	record := chapter.PipelineRecord{
		Chapter: chapter.Chapter{Index: 0, Title: "Intro"},
		JarvisWarning: []chapter.JarvisOccurrence{
			{Start: 1.25, End: 1.5},
			{Start: 4.0, End: 4.333},
		},
	}

	require.NoError(t, p.writeWarningsLog([]chapter.PipelineRecord{record}))

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "jarvis-warnings.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "Jarvis timestamps: 1.250-1.500, 4.000-4.333")
}

func TestRunnerStartStopLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, dir)
	cfg.EnableTranscription = false

	p, _ := newTestPipeline(t, cfg, nil)
	runner := NewRunner(p, nil)

	require.NoError(t, runner.Start(context.Background()))

	<-runner.Done()
	require.NoError(t, runner.Err())
}

func TestChapterSpeechCheckerFallsBackToRMSWithoutVad(t *testing.T) {
	tc := &fakeTranscoder{}
	checker := NewChapterSpeechChecker(tc, nil, 16000, 0.01)

	has, err := checker.HasSpeech(context.Background(), "clip.mkv")
	require.NoError(t, err)
	require.True(t, has)
}

func TestChapterSpeechCheckerUsesVadWhenAvailable(t *testing.T) {
	tc := &fakeTranscoder{}
	checker := NewChapterSpeechChecker(tc, fakeVadNone{}, 16000, 0.9)

	has, err := checker.HasSpeech(context.Background(), "clip.mkv")
	require.NoError(t, err)
	require.False(t, has)
}

type fakeVadNone struct{}

func (fakeVadNone) Detect(_ []float32) ([]vad.Interval, error) { return nil, nil }
