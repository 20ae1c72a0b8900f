package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/castforge/chapterpipe/chapter"
	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/rms"
	"github.com/castforge/chapterpipe/timerange"
	"github.com/castforge/chapterpipe/transcript"
)

// combineWithPrevious implements the combine-previous branch of the C9
// state machine: the current chapter's own cut windows (the
// combine-previous command included) are spliced out, then the result
// is joined onto the previous chapter's final output across a silence
// boundary on each side, overwriting that output in place.
func (p *Pipeline) combineWithPrevious(ctx context.Context, ch chapter.Chapter, normalizedPath string, clipDuration float64, commands []transcript.Command, prevFinalPath string, prevFinalDuration float64, logger *slog.Logger) (chapter.PipelineRecord, string, float64) {
	cutWindows := splicableWindows(commands)

	refined, err := p.Refiner.Refine(ctx, normalizedPath, clipDuration, cutWindows)
	if err != nil {
		logger.Error("window refinement failed during combine-previous", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	splicedPath := p.tempPath(ch, fmt.Sprintf("spliced.%s", p.InputExt))
	keptRanges, err := p.Splicer.Splice(ctx, normalizedPath, splicedPath, clipDuration, refined)
	if err != nil {
		logger.Error("splice failed during combine-previous", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}
	splicedDuration := timerange.Sum(keptRanges)
	if splicedDuration <= 0 {
		splicedDuration = clipDuration
	}

	prevBoundary := p.findJoinBoundary(ctx, prevFinalPath, prevFinalDuration, rms.Before)
	curBoundary := p.findJoinBoundary(ctx, splicedPath, splicedDuration, rms.After)

	prevKeepDuration, curTrimStart := p.allocateJoinPadding(prevFinalDuration, prevBoundary, curBoundary)

	prevTrimmedPath := p.tempPath(ch, fmt.Sprintf("previous-trimmed.%s", p.InputExt))
	if err := p.Transcoder.ExtractAccurate(ctx, prevFinalPath, prevTrimmedPath, mediaio.ExtractOptions{
		Start:         0,
		Duration:      prevKeepDuration,
		ReencodeVideo: p.Cfg.ReencodeVideo,
		VideoCRF:      p.Cfg.VideoCRF,
		VideoPreset:   p.Cfg.VideoPreset,
		AudioCodec:    p.Cfg.AudioCodec,
		AudioBitrate:  p.Cfg.AudioBitrate,
	}); err != nil {
		logger.Error("failed to trim previous output for combine-previous", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	curKeepDuration := splicedDuration - curTrimStart
	curTrimmedPath := p.tempPath(ch, fmt.Sprintf("current-trimmed.%s", p.InputExt))
	if err := p.Transcoder.ExtractAccurate(ctx, splicedPath, curTrimmedPath, mediaio.ExtractOptions{
		Start:         curTrimStart,
		Duration:      curKeepDuration,
		ReencodeVideo: p.Cfg.ReencodeVideo,
		VideoCRF:      p.Cfg.VideoCRF,
		VideoPreset:   p.Cfg.VideoPreset,
		AudioCodec:    p.Cfg.AudioCodec,
		AudioBitrate:  p.Cfg.AudioBitrate,
	}); err != nil {
		logger.Error("failed to trim current chapter for combine-previous", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	joinedPath := p.tempPath(ch, fmt.Sprintf("combined.%s", p.InputExt))
	if err := p.Transcoder.Concat(ctx, []string{prevTrimmedPath, curTrimmedPath}, joinedPath, p.Cfg.VideoCRF, p.Cfg.VideoPreset, p.Cfg.AudioCodec, p.Cfg.AudioBitrate); err != nil {
		logger.Error("failed to join previous and current chapter", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	finalDuration := prevKeepDuration + curKeepDuration
	warnings := p.postCheckJarvis(ctx, joinedPath, finalDuration)

	if err := overwriteFile(joinedPath, prevFinalPath); err != nil {
		logger.Error("failed to overwrite previous final output", slog.String("err", err.Error()))
		return chapter.PipelineRecord{Chapter: ch, Status: chapter.StatusAborted, FallbackNote: err.Error()}, "", 0
	}

	record := chapter.PipelineRecord{
		Chapter:         ch,
		Status:          chapter.StatusCombinedWithPrevious,
		FinalOutputPath: prevFinalPath,
		JarvisWarning:   warnings,
		EditFlag:        hasKind(commands, transcript.KindEdit),
		NoteEntries:     noteEntries(commands),
		SplitMarker:     hasKind(commands, transcript.KindSplit),
	}
	return record, prevFinalPath, finalDuration
}

// findJoinBoundary locates a join point for combine-previous. It finds
// the clip's speech edge (VAD first, RMS fallback), then runs a tiled RMS
// silence search over the whole clip: rms.Before for the previous clip
// (the silence run nearest the clip's end), rms.After for the current
// clip (the silence run nearest the clip's start). The speech edge is
// returned only when that search finds no silence run; the search is not
// limited to audio before the speech end or after the speech start.
func (p *Pipeline) findJoinBoundary(ctx context.Context, clipPath string, clipDuration float64, direction rms.Direction) float64 {
	samples, err := p.Transcoder.ReadSamples(ctx, clipPath, 0, clipDuration, p.Cfg.VadSampleRate)
	if err != nil || len(samples) == 0 {
		if direction == rms.Before {
			return clipDuration
		}
		return 0
	}

	var speechEdge float64
	var ok bool
	if p.Vad != nil {
		if intervals, err := p.Vad.Detect(samples); err == nil && len(intervals) > 0 {
			if direction == rms.Before {
				speechEdge, ok = intervals[len(intervals)-1].End, true
			} else {
				speechEdge, ok = intervals[0].Start, true
			}
		}
	}
	if !ok {
		if direction == rms.Before {
			speechEdge, ok = rms.FindSpeechEndRMS(samples, p.Cfg.VadSampleRate, p.Cfg.RMSWindowMs, p.Cfg.CommandSilenceRMSThreshold)
		} else {
			speechEdge, ok = rms.FindSpeechStartRMS(samples, p.Cfg.VadSampleRate, p.Cfg.RMSWindowMs, p.Cfg.CommandSilenceRMSThreshold)
		}
	}
	if !ok {
		if direction == rms.Before {
			return clipDuration
		}
		return 0
	}

	boundary, ok := rms.FindSilenceBoundaryRMS(samples, p.Cfg.VadSampleRate, direction, p.Cfg.RMSWindowMs, p.Cfg.CommandSilenceRMSThreshold, p.Cfg.RMSMinSilenceMs)
	if !ok {
		return speechEdge
	}
	return boundary
}

// allocateJoinPadding computes the previous clip's keep duration (its
// silence boundary plus tail padding) and the current clip's trim start
// (its silence boundary minus head padding), reallocating the requested
// padding from one side to the other when one side's silence is
// narrower than what was asked for.
func (p *Pipeline) allocateJoinPadding(prevDuration, prevBoundary, curBoundary float64) (prevKeepDuration, curTrimStart float64) {
	wantPrevTail := p.Cfg.PostSpeechPadding
	wantCurHead := p.Cfg.PreSpeechPadding

	availablePrevTail := prevDuration - prevBoundary
	if availablePrevTail < 0 {
		availablePrevTail = 0
	}
	availableCurHead := curBoundary
	if availableCurHead < 0 {
		availableCurHead = 0
	}

	prevTail := wantPrevTail
	if prevTail > availablePrevTail {
		deficit := prevTail - availablePrevTail
		prevTail = availablePrevTail
		wantCurHead += deficit
	}
	curHead := wantCurHead
	if curHead > availableCurHead {
		deficit := curHead - availableCurHead
		curHead = availableCurHead
		prevTail = clampFloat(prevTail+deficit, 0, availablePrevTail)
	}

	prevKeepDuration = clampFloat(prevBoundary+prevTail, 0, prevDuration)
	curTrimStart = clampFloat(curBoundary-curHead, 0, curBoundary)
	return prevKeepDuration, curTrimStart
}

// overwriteFile replaces dst's contents with src's, matching this
// codebase's copy-by-read/write idiom rather than relying on rename
// semantics across possibly different filesystems (temp dir vs output
// dir).
func overwriteFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
