// Package orchestrator wires C1-C8 into the per-chapter state machine
// described by C9: extract, normalize, transcribe, parse commands,
// refine windows, splice, detect the spliced clip's speech bounds, pad
// and trim, extract the final output, and post-check for a leaked wake
// word.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/castforge/chapterpipe/chapter"
	"github.com/castforge/chapterpipe/config"
	"github.com/castforge/chapterpipe/loudness"
	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/metrics"
	"github.com/castforge/chapterpipe/sttclient"
	"github.com/castforge/chapterpipe/timerange"
	"github.com/castforge/chapterpipe/vad"
)

// Transcoder is the subset of mediaio.Transcoder the orchestrator drives
// directly (beyond what it hands to the splicer).
type Transcoder interface {
	ExtractAccurate(ctx context.Context, src, dst string, opts mediaio.ExtractOptions) error
	ReadSamples(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float32, error)
	Concat(ctx context.Context, parts []string, dst string, crf int, preset, audioCodec, audioBitrate string) error
}

// LoudnessNormalizer is satisfied by *loudness.Normalizer.
type LoudnessNormalizer interface {
	Analyze(ctx context.Context, src string) (loudness.Analysis, error)
	Render(ctx context.Context, src, dst string, a loudness.Analysis) error
}

// Transcriber is satisfied by *sttclient.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, outputPrefix string) (sttclient.Result, error)
}

// SpeechDetector is satisfied by *vad.Runner. May be nil, signaling that
// the VAD model could not be loaded; the orchestrator falls back to RMS
// wherever it's consulted.
type SpeechDetector interface {
	Detect(samples []float32) ([]vad.Interval, error)
}

// WindowRefiner is satisfied by *refine.Refiner.
type WindowRefiner interface {
	Refine(ctx context.Context, clipPath string, clipDuration float64, windows []timerange.Range) ([]timerange.Range, error)
}

// Splicer is satisfied by *splice.Splicer.
type Splicer interface {
	Splice(ctx context.Context, src, dst string, clipDuration float64, cutWindows []timerange.Range) ([]timerange.Range, error)
}

// SpeechChecker is satisfied by a thin adapter over SpeechDetector,
// reused by the splicer for its per-segment speech gate.
type SpeechChecker interface {
	HasSpeech(ctx context.Context, path string) (bool, error)
}

// Pipeline holds every collaborator the state machine drives, plus the
// run's configuration and accumulators.
type Pipeline struct {
	Cfg        config.Config
	Transcoder Transcoder
	Loudness   LoudnessNormalizer
	Stt        Transcriber
	Vad        SpeechDetector
	Refiner    WindowRefiner
	Splicer    Splicer

	InputExt string // output container extension, matching the input

	tempDir string
	log     *chapter.OutputLog
	logger  *slog.Logger
}

// New builds a Pipeline for a single run, creating its temp directory
// under outputDir/.tmp/<uuid>.
func New(cfg config.Config, inputExt string, transcoder Transcoder, norm LoudnessNormalizer, stt Transcriber, vadRunner SpeechDetector, refiner WindowRefiner, splicer Splicer, logger *slog.Logger) (*Pipeline, error) {
	tempDir := filepath.Join(cfg.OutputDir, ".tmp", uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	return &Pipeline{
		Cfg:        cfg,
		Transcoder: transcoder,
		Loudness:   norm,
		Stt:        stt,
		Vad:        vadRunner,
		Refiner:    refiner,
		Splicer:    splicer,
		InputExt:   inputExt,
		tempDir:    tempDir,
		log:        &chapter.OutputLog{InputPath: cfg.InputPath, OutputDir: cfg.OutputDir},
		logger:     logger,
	}, nil
}

// Runner wraps a Pipeline's Run in the Start/Stop/Done/Err async
// lifecycle this codebase's process entry points expect.
type Runner struct {
	pipeline *Pipeline
	chapters []mediaio.Chapter

	errCh    chan error
	doneCh   chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc
}

func NewRunner(p *Pipeline, chapters []mediaio.Chapter) *Runner {
	return &Runner{
		pipeline: p,
		chapters: chapters,
		errCh:    make(chan error, 1),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the chapter loop in the background and returns
// immediately; completion is signaled via Done/Err.
func (r *Runner) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go func() {
		err := r.pipeline.Run(runCtx, r.chapters)
		r.doneOnce.Do(func() {
			r.errCh <- err
			close(r.doneCh)
		})
	}()

	return nil
}

// Stop cancels the in-flight run and waits for it to finish.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.doneCh:
		return <-r.errCh
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Done() <-chan struct{} { return r.doneCh }

func (r *Runner) Err() error {
	select {
	case err := <-r.errCh:
		return err
	default:
		return nil
	}
}

// Run processes every chapter in index order, writing the final outputs,
// the three permanent logs, and the summary log. It returns a non-nil
// error only when one of those log files cannot be written; per-chapter
// failures are recorded, not propagated.
func (p *Pipeline) Run(ctx context.Context, chapters []mediaio.Chapter) error {
	defer p.cleanupTempDir()

	var prevFinalPath string
	var prevFinalDuration float64

	for _, mc := range chapters {
		ch := chapter.Chapter{Index: mc.Index, Title: mc.Title, Start: mc.Start, End: mc.End}

		if err := ctx.Err(); err != nil {
			p.log.Add(chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: "run cancelled"})
			continue
		}

		timer := prometheus.NewTimer(metrics.ChapterDuration)
		record, newFinal, newFinalDuration := p.processChapter(ctx, ch, prevFinalPath, prevFinalDuration)
		timer.ObserveDuration()

		p.log.Add(record)
		p.recordMetrics(record)

		if newFinal != "" {
			prevFinalPath = newFinal
			prevFinalDuration = newFinalDuration
		}
	}

	return p.writeLogs()
}

func (p *Pipeline) recordMetrics(r chapter.PipelineRecord) {
	switch r.Status {
	case chapter.StatusProcessed:
		metrics.ChaptersProcessed.Inc()
	case chapter.StatusCombinedWithPrevious:
		metrics.ChaptersCombined.Inc()
	case chapter.StatusSkippedInitialShort:
		metrics.RecordSkip(metrics.SkipReasonInitialShort)
	case chapter.StatusSkippedTrimmedShort:
		metrics.RecordSkip(metrics.SkipReasonTrimmedShort)
	case chapter.StatusSkippedTranscript:
		metrics.RecordSkip(metrics.SkipReasonTranscript)
	case chapter.StatusSkippedBadTake:
		metrics.RecordSkip(metrics.SkipReasonBadTake)
	}
	if len(r.JarvisWarning) > 0 {
		metrics.JarvisWarnings.Inc()
	}
	if r.EditFlag {
		metrics.EditFlags.Inc()
	}
	metrics.NotesRecorded.Add(float64(len(r.NoteEntries)))
}

func (p *Pipeline) cleanupTempDir() {
	if p.Cfg.Retention {
		return
	}
	if err := os.RemoveAll(p.tempDir); err != nil {
		p.logger.Warn("failed to remove temp dir", slog.String("path", p.tempDir), slog.String("err", err.Error()))
	}
}

func (p *Pipeline) tempPath(ch chapter.Chapter, suffix string) string {
	base := chapter.FormatChapterFilename(ch.Index+1, ch.Title)
	return filepath.Join(p.tempDir, fmt.Sprintf("%s-%s", base, suffix))
}

// ChapterSpeechChecker adapts a Transcoder and SpeechDetector (with RMS
// fallback) into splice.SpeechChecker, for wiring a Splicer's speech gate
// to the same VAD/RMS collaborators the rest of the pipeline uses.
type ChapterSpeechChecker struct {
	transcoder   Transcoder
	vadRunner    SpeechDetector
	sampleRate   int
	rmsThreshold float64
}

func NewChapterSpeechChecker(transcoder Transcoder, vadRunner SpeechDetector, sampleRate int, rmsThreshold float64) ChapterSpeechChecker {
	return ChapterSpeechChecker{transcoder: transcoder, vadRunner: vadRunner, sampleRate: sampleRate, rmsThreshold: rmsThreshold}
}

func (c ChapterSpeechChecker) HasSpeech(ctx context.Context, path string) (bool, error) {
	samples, err := c.transcoder.ReadSamples(ctx, path, 0, durationHint, c.sampleRate)
	if err != nil {
		return false, fmt.Errorf("failed to read samples for speech check: %w", err)
	}
	if len(samples) == 0 {
		return false, nil
	}
	if c.vadRunner != nil {
		intervals, err := c.vadRunner.Detect(samples)
		if err == nil {
			return len(intervals) > 0, nil
		}
		metrics.VadFailures.Inc()
	}
	return rmsHasSpeech(samples, c.rmsThreshold), nil
}

// durationHint is large enough to cover any real segment. It is passed
// on as the read or extract duration; an overshoot is harmless because
// the transcoder stops at the end of the input.
const durationHint = 3600.0
