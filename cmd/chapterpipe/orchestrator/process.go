package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/castforge/chapterpipe/chapter"
	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/metrics"
	"github.com/castforge/chapterpipe/pipelineerr"
	"github.com/castforge/chapterpipe/rms"
	"github.com/castforge/chapterpipe/timerange"
	"github.com/castforge/chapterpipe/transcript"
)

// processChapter runs one chapter through the full C9 state machine,
// returning its terminal record and, if it produced or overwrote a final
// output, that output's path and duration (otherwise "", 0).
func (p *Pipeline) processChapter(ctx context.Context, ch chapter.Chapter, prevFinalPath string, prevFinalDuration float64) (chapter.PipelineRecord, string, float64) {
	logger := p.logger.With(slog.Int("chapterIndex", ch.Index), slog.String("chapterTitle", ch.Title))

	if ch.Duration() < p.Cfg.MinChapterSeconds {
		logger.Info("chapter shorter than minimum, skipping")
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusSkippedInitialShort}, "", 0
	}

	rawPath := p.tempPath(ch, fmt.Sprintf("raw.%s", p.InputExt))
	if err := p.Transcoder.ExtractAccurate(ctx, p.Cfg.InputPath, rawPath, mediaio.ExtractOptions{
		Start:         ch.Start,
		Duration:      ch.Duration(),
		ReencodeVideo: p.Cfg.ReencodeVideo,
		VideoCRF:      p.Cfg.VideoCRF,
		VideoPreset:   p.Cfg.VideoPreset,
		AudioCodec:    p.Cfg.AudioCodec,
		AudioBitrate:  p.Cfg.AudioBitrate,
	}); err != nil {
		logger.Error("raw extract failed", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	normalizedPath := p.tempPath(ch, fmt.Sprintf("normalized.%s", p.InputExt))
	analysis, err := p.Loudness.Analyze(ctx, rawPath)
	if err != nil {
		logger.Warn("loudness analysis failed, using raw extract as normalized clip", slog.String("err", err.Error()))
		normalizedPath = rawPath
	} else if err := p.Loudness.Render(ctx, rawPath, normalizedPath, analysis); err != nil {
		logger.Warn("loudness render failed, using raw extract as normalized clip", slog.String("err", err.Error()))
		normalizedPath = rawPath
	}

	clipDuration := ch.Duration()
	title := ch.Title
	var commands []transcript.Command
	var fallbackNote string

	if p.Cfg.EnableTranscription {
		commands, fallbackNote = p.transcribeCommands(ctx, normalizedPath, clipDuration)

		if wordCount := p.wordCountOf(ctx, normalizedPath, clipDuration); wordCount <= 10 && len(commands) == 0 {
			return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusSkippedTranscript, FallbackNote: fallbackNote}, "", 0
		}

		for _, c := range commands {
			if c.Kind == transcript.KindBadTake {
				logger.Info("bad-take command detected, skipping chapter")
				return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusSkippedBadTake}, "", 0
			}
		}

		for _, c := range commands {
			if c.Kind == transcript.KindFilename && c.Value != "" {
				title = c.Value
				break
			}
		}
	}

	for _, c := range commands {
		if c.Kind != transcript.KindCombinePrevious {
			continue
		}
		if prevFinalPath == "" {
			logger.Warn("combine-previous requested but no previous chapter output is available, processing normally", slog.String("err", pipelineerr.ErrCombinePreviousUnavailable.Error()))
			fallbackNote = strings.TrimSpace(fallbackNote + " " + pipelineerr.ErrCombinePreviousUnavailable.Error())
			break
		}
		return p.combineWithPrevious(ctx, ch, normalizedPath, clipDuration, commands, prevFinalPath, prevFinalDuration, logger)
	}

	cutWindows := splicableWindows(commands)

	refined, err := p.Refiner.Refine(ctx, normalizedPath, clipDuration, cutWindows)
	if err != nil {
		logger.Error("window refinement failed", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	splicedPath := p.tempPath(ch, fmt.Sprintf("spliced.%s", p.InputExt))
	keptRanges, err := p.Splicer.Splice(ctx, normalizedPath, splicedPath, clipDuration, refined)
	if err != nil {
		logger.Error("splice failed", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	splicedDuration := timerange.Sum(keptRanges)
	if splicedDuration <= 0 {
		splicedDuration = clipDuration
	}

	bounds, note := p.detectSpeechBounds(ctx, splicedPath, splicedDuration)

	padStart := clampFloat(bounds.Start-p.Cfg.PreSpeechPadding, 0, splicedDuration)
	padEnd := clampFloat(bounds.End+p.Cfg.PostSpeechPadding, 0, splicedDuration)
	if padEnd <= padStart+p.Cfg.MinTrimWindowSeconds {
		logger.Error("padded trim window too small", slog.Float64("start", padStart), slog.Float64("end", padEnd))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: fmt.Sprintf("%s: trim window [%.3f, %.3f)", pipelineerr.ErrTrimWindow.Error(), padStart, padEnd)}, "", 0
	}

	trimmedDuration := padEnd - padStart
	if trimmedDuration < p.Cfg.MinChapterSeconds {
		logger.Info("trimmed chapter shorter than minimum, skipping")
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusSkippedTrimmedShort}, "", 0
	}

	finalName := chapter.FormatOutputFilename(ch.Index+1, title, p.InputExt)
	finalPath := filepath.Join(p.Cfg.OutputDir, finalName)
	if err := p.Transcoder.ExtractAccurate(ctx, splicedPath, finalPath, mediaio.ExtractOptions{
		Start:         padStart,
		Duration:      trimmedDuration,
		ReencodeVideo: p.Cfg.ReencodeVideo,
		VideoCRF:      p.Cfg.VideoCRF,
		VideoPreset:   p.Cfg.VideoPreset,
		AudioCodec:    p.Cfg.AudioCodec,
		AudioBitrate:  p.Cfg.AudioBitrate,
	}); err != nil {
		logger.Error("final extract failed", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	warnings := p.postCheckJarvis(ctx, finalPath, trimmedDuration)

	record := chapter.PipelineRecord{
		Chapter:         ch,
		Status:          chapter.StatusProcessed,
		FinalOutputPath: finalPath,
		FallbackNote:    strings.TrimSpace(fallbackNote + " " + note),
		JarvisWarning:   warnings,
		EditFlag:        hasKind(commands, transcript.KindEdit),
		NoteEntries:     noteEntries(commands),
		SplitMarker:     hasKind(commands, transcript.KindSplit),
	}
	return record, finalPath, trimmedDuration
}

// splicableWindows returns the windows of every parsed command that must
// be cut out of the chapter's audio: the spoken command itself is never
// contentful speech. This includes the combine-previous command's own
// window; bad-take is handled by the earlier branch and is excluded.
func splicableWindows(commands []transcript.Command) []timerange.Range {
	var windows []timerange.Range
	for _, c := range commands {
		switch c.Kind {
		case transcript.KindBadTake:
			continue
		default:
			windows = append(windows, c.Window)
		}
	}
	return windows
}

func hasKind(commands []transcript.Command, k transcript.Kind) bool {
	for _, c := range commands {
		if c.Kind == k {
			return true
		}
	}
	return false
}

func noteEntries(commands []transcript.Command) []chapter.NoteEntry {
	var notes []chapter.NoteEntry
	for _, c := range commands {
		if c.Kind == transcript.KindNote {
			notes = append(notes, chapter.NoteEntry{Value: c.Value, At: c.Window.Start})
		}
	}
	return notes
}

// transcribeCommands transcribes the clip, normalizes and rescales its
// segments, and parses the resulting command list. STT failure is
// reported via a fallback note with no commands, per the SttError
// contract.
func (p *Pipeline) transcribeCommands(ctx context.Context, clipPath string, clipDuration float64) ([]transcript.Command, string) {
	words, note := p.transcribeWords(ctx, clipPath, clipDuration)
	if len(words) == 0 {
		return nil, note
	}

	cfg := transcript.ParserConfig{
		WakeWord:              p.Cfg.WakeWord,
		CloseWord:             p.Cfg.CloseWord,
		CommandStarters:       starterSet(p.Cfg.CommandStarters),
		CommandTailMaxSeconds: p.Cfg.CommandTailMaxSeconds,
	}
	return transcript.Parse(words, cfg), note
}

func starterSet(starters []string) map[string]bool {
	set := make(map[string]bool, len(starters))
	for _, s := range starters {
		set[s] = true
	}
	return set
}

// transcribeWords runs the STT engine over clipPath and returns
// normalized, corrected, rescaled words.
func (p *Pipeline) transcribeWords(ctx context.Context, clipPath string, clipDuration float64) ([]transcript.Word, string) {
	wavPath := clipPath + "-transcribe.wav"
	if err := p.renderTranscribeWav(ctx, clipPath, wavPath); err != nil {
		return nil, fmt.Sprintf("%s: %s", pipelineerr.ErrSTT.Error(), err.Error())
	}

	result, err := p.Stt.Transcribe(ctx, wavPath, clipPath+"-transcribe")
	if err != nil {
		metrics.SttFailures.Inc()
		return nil, fmt.Sprintf("%s: %s", pipelineerr.ErrSTT.Error(), err.Error())
	}

	segments := make([]transcript.Segment, len(result.Segments))
	for i, s := range result.Segments {
		segments[i] = transcript.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	if result.SegmentsSource != "tokens" {
		segments = transcript.Rescale(segments, clipDuration)
	}

	return transcript.ToWords(segments), ""
}

func (p *Pipeline) wordCountOf(ctx context.Context, clipPath string, clipDuration float64) int {
	words, _ := p.transcribeWords(ctx, clipPath, clipDuration)
	return len(words)
}

// renderTranscribeWav extracts a mono 16 kHz PCM rendition of clipPath
// for STT input. Modeled as an accurate, audio-only re-encode.
func (p *Pipeline) renderTranscribeWav(ctx context.Context, clipPath, wavPath string) error {
	return p.Transcoder.ExtractAccurate(ctx, clipPath, wavPath, mediaio.ExtractOptions{
		Start:        0,
		Duration:     durationHint,
		AudioCodec:   "pcm_s16le",
		AudioBitrate: "256k",
	})
}

// speechBounds is the start of the first and end of the last detected
// speech interval on a clip's timeline.
type speechBounds struct {
	Start float64
	End   float64
}

// detectSpeechBounds runs VAD over clipPath, falling back to RMS and
// finally to the full clip if neither detector finds anything. The
// second return value is a non-empty fallback note when a substitution
// was made.
func (p *Pipeline) detectSpeechBounds(ctx context.Context, clipPath string, clipDuration float64) (speechBounds, string) {
	samples, err := p.Transcoder.ReadSamples(ctx, clipPath, 0, clipDuration, p.Cfg.VadSampleRate)
	if err != nil || len(samples) == 0 {
		return speechBounds{Start: 0, End: clipDuration}, "speech bounds unavailable, using full clip"
	}

	if p.Vad != nil {
		if intervals, err := p.Vad.Detect(samples); err == nil && len(intervals) > 0 {
			return speechBounds{Start: intervals[0].Start, End: intervals[len(intervals)-1].End}, ""
		}
	}

	start, startOK := rms.FindSpeechStartRMS(samples, p.Cfg.VadSampleRate, p.Cfg.RMSWindowMs, p.Cfg.CommandSilenceRMSThreshold)
	end, endOK := rms.FindSpeechEndRMS(samples, p.Cfg.VadSampleRate, p.Cfg.RMSWindowMs, p.Cfg.CommandSilenceRMSThreshold)
	if startOK && endOK {
		return speechBounds{Start: start, End: end}, "speech bounds from RMS fallback"
	}

	return speechBounds{Start: 0, End: clipDuration}, "speech bounds unavailable, using full clip"
}

// postCheckJarvis re-transcribes finalPath and returns the [start, end)
// span of every wake-word occurrence remaining in the final output.
// It returns nil when no STT engine is configured.
func (p *Pipeline) postCheckJarvis(ctx context.Context, finalPath string, duration float64) []chapter.JarvisOccurrence {
	if p.Stt == nil {
		return nil
	}
	words, _ := p.transcribeWords(ctx, finalPath, duration)
	var hits []chapter.JarvisOccurrence
	for _, w := range words {
		if w.Text == p.Cfg.WakeWord {
			hits = append(hits, chapter.JarvisOccurrence{Start: w.Start, End: w.End})
		}
	}
	return hits
}

// rmsHasSpeech reports whether the segment's overall RMS exceeds the
// silence threshold, used as the VAD fallback for the splicer's
// per-segment speech gate.
func rmsHasSpeech(samples []float32, threshold float64) bool {
	return rms.RMS(samples) > threshold
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
