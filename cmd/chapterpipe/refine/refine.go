// Package refine snaps parser-produced command windows to nearby silence
// boundaries so splicing produces click-free output, per C7.
package refine

import (
	"context"

	"github.com/castforge/chapterpipe/rms"
	"github.com/castforge/chapterpipe/timerange"
	"github.com/castforge/chapterpipe/vad"
)

// SampleSource reads mono PCM for an arbitrary time range at a given
// sample rate — satisfied by mediaio.Transcoder.ReadSamples.
type SampleSource interface {
	ReadSamples(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float32, error)
}

// VadDetector detects speech intervals in PCM — satisfied by
// vad.Runner.Detect.
type VadDetector interface {
	Detect(samples []float32) ([]vad.Interval, error)
}

// Params names the refiner's tunables, all sourced from config.Config.
type Params struct {
	PaddingSeconds           float64
	SilenceRMSThreshold      float64
	SilenceSearchSeconds     float64
	SilenceMaxBackwardSeconds float64
	RMSWindowMs              int
	RMSMinSilenceMs          int
	SampleRate               int
}

// Refiner snaps command windows onto nearby silence using VAD first, RMS
// as a fallback.
type Refiner struct {
	Source SampleSource
	Vad    VadDetector // nil if unavailable; refiner falls back to RMS
	Params Params
}

// Refine pads, merges, and snaps windows to silence. It is idempotent on
// already-aligned windows.
func (r *Refiner) Refine(ctx context.Context, clipPath string, clipDuration float64, windows []timerange.Range) ([]timerange.Range, error) {
	if len(windows) == 0 {
		return nil, nil
	}

	padded := make([]timerange.Range, len(windows))
	for i, w := range windows {
		padded[i] = timerange.Range{
			Start: clamp(w.Start-r.Params.PaddingSeconds, 0, clipDuration),
			End:   clamp(w.End+r.Params.PaddingSeconds, 0, clipDuration),
		}
	}

	merged, err := timerange.Merge(padded)
	if err != nil {
		return nil, err
	}

	refined := make([]timerange.Range, len(merged))
	for i, w := range merged {
		start, err := r.refineBoundary(ctx, clipPath, clipDuration, w.Start, rms.Before)
		if err != nil {
			return nil, err
		}
		end, err := r.refineBoundary(ctx, clipPath, clipDuration, w.End, rms.After)
		if err != nil {
			return nil, err
		}
		refined[i] = timerange.Range{Start: start, End: end}
	}

	return timerange.Merge(refined)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// refineBoundary implements a single boundary's keep-in-silence check and,
// if needed, nearest-silence search.
func (r *Refiner) refineBoundary(ctx context.Context, clipPath string, clipDuration, target float64, dir rms.Direction) (float64, error) {
	halfWin := 1.5 * (float64(r.Params.RMSWindowMs) / 1000.0)

	winStart := clamp(target-halfWin, 0, clipDuration)
	winEnd := clamp(target+halfWin, 0, clipDuration)
	if winEnd > winStart {
		samples, err := r.Source.ReadSamples(ctx, clipPath, winStart, winEnd-winStart, r.Params.SampleRate)
		if err == nil {
			winSamples := int(float64(r.Params.RMSWindowMs) / 1000.0 * float64(r.Params.SampleRate))
			if rms.MinWindowRMS(samples, winSamples) < r.Params.SilenceRMSThreshold {
				// Already in silence; no refinement needed.
				return target, nil
			}
		}
	}

	searchStart, searchEnd := r.searchWindow(target, clipDuration, dir)
	if searchEnd <= searchStart {
		return target, nil
	}

	searchSamples, err := r.Source.ReadSamples(ctx, clipPath, searchStart, searchEnd-searchStart, r.Params.SampleRate)
	if err != nil || len(searchSamples) == 0 {
		return target, nil
	}

	candidate, ok := r.findBoundary(searchSamples, dir)
	if !ok {
		return target, nil
	}

	absolute := searchStart + candidate

	if dir == rms.Before {
		movedBack := target - absolute
		if movedBack > r.Params.SilenceMaxBackwardSeconds {
			return target, nil
		}
	}

	return absolute, nil
}

// searchWindow computes the [start, end) PCM range to pull for the
// silence search in the given direction.
func (r *Refiner) searchWindow(target, clipDuration float64, dir rms.Direction) (float64, float64) {
	if dir == rms.Before {
		start := clamp(target-r.Params.SilenceSearchSeconds, 0, clipDuration)
		return start, target
	}
	end := clamp(target+r.Params.SilenceSearchSeconds, 0, clipDuration)
	return target, end
}

// findBoundary tries VAD-derived silence gaps first, falling back to
// tiled RMS when VAD is unavailable or yields nothing.
func (r *Refiner) findBoundary(samples []float32, dir rms.Direction) (float64, bool) {
	duration := float64(len(samples)) / float64(r.Params.SampleRate)

	if r.Vad != nil {
		if intervals, err := r.Vad.Detect(samples); err == nil {
			speech := make([]rms.SpeechInterval, len(intervals))
			for i, iv := range intervals {
				speech[i] = rms.SpeechInterval{Start: iv.Start, End: iv.End}
			}
			gaps := rms.BuildSilenceGapsFromSpeech(speech, duration)
			if off, ok := nearestGapBoundary(gaps, dir, duration); ok {
				return off, true
			}
		}
	}

	return rms.FindSilenceBoundaryRMS(samples, r.Params.SampleRate, dir, r.Params.RMSWindowMs, r.Params.SilenceRMSThreshold, r.Params.RMSMinSilenceMs)
}

// nearestGapBoundary picks the silence gap closest to the relevant edge
// of the search window: for Before, the gap closest to the end of the
// buffer (its end becomes the candidate boundary); for After, the gap
// closest to the start of the buffer (its start becomes the candidate).
func nearestGapBoundary(gaps []rms.SpeechInterval, dir rms.Direction, duration float64) (float64, bool) {
	if len(gaps) == 0 {
		return 0, false
	}
	if dir == rms.Before {
		best := gaps[len(gaps)-1]
		return best.End, true
	}
	best := gaps[0]
	return best.Start, true
}
