// Package rms implements the windowed RMS analysis used both as the sole
// silence detector for command-window refinement when VAD is unavailable
// and as the corroborating signal when it is. All functions are pure and
// operate directly on mono float32 PCM.
package rms

import "math"

// Direction is the side from which a silence boundary search proceeds.
type Direction int

const (
	// Before searches backward from the end of the buffer (used to
	// refine a command window's start).
	Before Direction = iota
	// After searches forward from the start of the buffer (used to
	// refine a command window's end).
	After
)

// RMS returns the root-mean-square of samples, or 0 for an empty buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MinWindowRMS returns the minimum RMS over all contiguous windows of win
// samples, stepping by 1 sample. Returns 0 for empty input or a
// non-positive window, and the full-buffer RMS when win >= len(samples).
func MinWindowRMS(samples []float32, win int) float64 {
	if len(samples) == 0 || win <= 0 {
		return 0
	}
	if win >= len(samples) {
		return RMS(samples)
	}

	// Running sum of squares avoids an O(n*win) scan.
	var sumSq float64
	for _, s := range samples[:win] {
		sumSq += float64(s) * float64(s)
	}
	minSumSq := sumSq

	for i := win; i < len(samples); i++ {
		leaving := float64(samples[i-win])
		entering := float64(samples[i])
		sumSq += entering*entering - leaving*leaving
		if sumSq < minSumSq {
			minSumSq = sumSq
		}
	}
	if minSumSq < 0 {
		minSumSq = 0
	}
	return math.Sqrt(minSumSq / float64(win))
}

// tile partitions samples into contiguous windows of winSamples, returning
// the RMS of each tile. The final, possibly short, tile is included.
func tile(samples []float32, winSamples int) []float64 {
	if winSamples <= 0 {
		return nil
	}
	var tiles []float64
	for i := 0; i < len(samples); i += winSamples {
		end := i + winSamples
		if end > len(samples) {
			end = len(samples)
		}
		tiles = append(tiles, RMS(samples[i:end]))
	}
	return tiles
}

// FindSilenceBoundaryRMS partitions samples into contiguous tiles of winMs
// and classifies each as silent when its RMS is below threshold. Starting
// from the appropriate end, it locates the first run of
// ceil(minSilenceMs/winMs) consecutive silent tiles and returns the offset,
// in seconds, of the boundary within that run: for Before, the end of the
// run (closest to the end of the buffer); for After, the start of the run
// (closest to the start of the buffer). Returns (0, false) if no such run
// exists.
func FindSilenceBoundaryRMS(samples []float32, sampleRate int, direction Direction, winMs int, threshold float64, minSilenceMs int) (float64, bool) {
	if len(samples) == 0 || sampleRate <= 0 || winMs <= 0 {
		return 0, false
	}

	winSamples := winMs * sampleRate / 1000
	if winSamples <= 0 {
		return 0, false
	}
	tiles := tile(samples, winSamples)
	if len(tiles) == 0 {
		return 0, false
	}

	needed := int(math.Ceil(float64(minSilenceMs) / float64(winMs)))
	if needed <= 0 {
		needed = 1
	}

	tileDur := float64(winMs) / 1000.0

	silent := make([]bool, len(tiles))
	for i, r := range tiles {
		silent[i] = r < threshold
	}

	if direction == Before {
		run := 0
		for i := len(silent) - 1; i >= 0; i-- {
			if silent[i] {
				run++
				if run >= needed {
					// end of the run, closest to end-of-buffer: one past
					// the last tile index in the run.
					endTileIdx := i + run
					return float64(endTileIdx) * tileDur, true
				}
			} else {
				run = 0
			}
		}
		return 0, false
	}

	run := 0
	start := 0
	for i := 0; i < len(silent); i++ {
		if silent[i] {
			if run == 0 {
				start = i
			}
			run++
			if run >= needed {
				return float64(start) * tileDur, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// FindSpeechStartRMS locates the first non-silent tile from the start of
// the buffer, returning its offset in seconds. Returns (0, false) if the
// entire buffer is silent.
func FindSpeechStartRMS(samples []float32, sampleRate int, winMs int, threshold float64) (float64, bool) {
	winSamples := winMs * sampleRate / 1000
	if winSamples <= 0 {
		return 0, false
	}
	tiles := tile(samples, winSamples)
	tileDur := float64(winMs) / 1000.0
	for i, r := range tiles {
		if r >= threshold {
			return float64(i) * tileDur, true
		}
	}
	return 0, false
}

// FindSpeechEndRMS locates the last non-silent tile from the end of the
// buffer, returning the offset, in seconds, of that tile's end. Returns
// (0, false) if the entire buffer is silent.
func FindSpeechEndRMS(samples []float32, sampleRate int, winMs int, threshold float64) (float64, bool) {
	winSamples := winMs * sampleRate / 1000
	if winSamples <= 0 {
		return 0, false
	}
	tiles := tile(samples, winSamples)
	tileDur := float64(winMs) / 1000.0
	for i := len(tiles) - 1; i >= 0; i-- {
		if tiles[i] >= threshold {
			return float64(i+1) * tileDur, true
		}
	}
	return 0, false
}

// FindLowestAmplitudeOffset returns the start offset, in seconds, of the
// quietest winSamples-wide window in the buffer — the best candidate point
// to cut through when no clean silence run can be found.
func FindLowestAmplitudeOffset(samples []float32, sampleRate int, winSamples int) (float64, bool) {
	if len(samples) == 0 || winSamples <= 0 || sampleRate <= 0 {
		return 0, false
	}
	if winSamples > len(samples) {
		winSamples = len(samples)
	}

	var sumSq float64
	for _, s := range samples[:winSamples] {
		sumSq += float64(s) * float64(s)
	}
	bestIdx := 0
	bestSumSq := sumSq

	for i := winSamples; i < len(samples); i++ {
		leaving := float64(samples[i-winSamples])
		entering := float64(samples[i])
		sumSq += entering*entering - leaving*leaving
		if sumSq < bestSumSq {
			bestSumSq = sumSq
			bestIdx = i - winSamples + 1
		}
	}

	return float64(bestIdx) / float64(sampleRate), true
}

// SpeechInterval is a speech interval on a clip's timeline, in seconds.
type SpeechInterval struct {
	Start float64
	End   float64
}

// BuildSilenceGapsFromSpeech returns the complement of speech within
// [0, duration], dropping gaps shorter than 0.001s. speech must be sorted
// and non-overlapping.
func BuildSilenceGapsFromSpeech(speech []SpeechInterval, duration float64) []SpeechInterval {
	const minGap = 0.001

	var gaps []SpeechInterval
	cursor := 0.0
	for _, s := range speech {
		if s.Start-cursor > minGap {
			gaps = append(gaps, SpeechInterval{Start: cursor, End: s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if duration-cursor > minGap {
		gaps = append(gaps, SpeechInterval{Start: cursor, End: duration})
	}
	return gaps
}

// FindSilenceBoundaryProgressive is a reserved, non-invoked helper: it
// widens the minimum-silence requirement in steps until a boundary is
// found or maxSilenceMs is exceeded. Kept for parity with the wider
// refinement design but not wired into the default refinement path.
func FindSilenceBoundaryProgressive(samples []float32, sampleRate int, direction Direction, winMs int, threshold float64, minSilenceMs, maxSilenceMs, stepMs int) (float64, bool) {
	if stepMs <= 0 {
		stepMs = winMs
	}
	for need := minSilenceMs; need <= maxSilenceMs; need += stepMs {
		if off, ok := FindSilenceBoundaryRMS(samples, sampleRate, direction, winMs, threshold, need); ok {
			return off, true
		}
	}
	return 0, false
}
