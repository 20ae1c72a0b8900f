// Package vad runs the streaming speech-probability model over PCM and
// emits speech intervals with hysteresis and padding, per the chapter
// pipeline's C4 contract. The neural model itself is the teacher's own
// github.com/streamer45/silero-vad-go/speech binding; this package adds
// the domain-specific min-speech filtering, asymmetric padding with
// overlap redistribution, and the process-wide lazily-initialized session
// the design notes require.
package vad

import (
	"fmt"
	"sort"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/castforge/chapterpipe/pipelineerr"
)

// Interval is a detected speech interval, in seconds, on the clip's
// timeline.
type Interval struct {
	Start float64
	End   float64
}

// Config mirrors the hysteresis/padding tunables named in the pipeline
// spec; SpeechThreshold is the per-frame probability the underlying model
// must cross to open a candidate, MinSilenceMs/MinSpeechMs gate
// confirmation, SpeechPadMs pads each accepted interval. NegThreshold is
// not passed to the underlying detector and has no effect.
type Config struct {
	ModelPath       string
	SampleRate      int
	WindowSamples   int
	SpeechThreshold float64
	NegThreshold    float64
	MinSilenceMs    int
	MinSpeechMs     int
	SpeechPadMs     int
}

// segmentDetector is the subset of *speech.Detector the Runner drives;
// naming it lets tests exercise Detect() end-to-end against a stub
// instead of the real cgo-backed model.
type segmentDetector interface {
	Reset() error
	Detect(pcm []float32) ([]speech.Segment, error)
}

var (
	sessionOnce sync.Once
	session     segmentDetector
	sessionErr  error
)

// loadSession lazily initializes the process-wide VAD session. Every
// Detect call shares this one session and resets its state via sd.Reset
// before use; the session holds no per-call state, so concurrent Detect
// calls are not safe.
func loadSession(cfg Config) (segmentDetector, error) {
	sessionOnce.Do(func() {
		session, sessionErr = speech.NewDetector(speech.DetectorConfig{
			ModelPath:            cfg.ModelPath,
			SampleRate:           cfg.SampleRate,
			WindowSize:           cfg.WindowSamples,
			Threshold:            float32(cfg.SpeechThreshold),
			MinSilenceDurationMs: cfg.MinSilenceMs,
			// Padding is applied once, by padAndRedistribute below, using
			// the pipeline's own overlap-aware rules; the detector itself
			// must return unpadded segment boundaries.
			SpeechPadMs: 0,
		})
	})
	return session, sessionErr
}

// Runner detects speech intervals in a clip's PCM and applies the
// pipeline's own min-speech and padding-overlap rules on top of the
// model's raw segmentation.
type Runner struct {
	cfg Config

	// detector overrides loadSession's process-wide singleton when set;
	// used by tests to exercise Detect() against a stub.
	detector segmentDetector
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, fmt.Errorf("sample rate %d: %w", cfg.SampleRate, pipelineerr.ErrInvalidInput)
	}
	return &Runner{cfg: cfg}, nil
}

// Detect runs the model over samples (mono PCM at cfg.SampleRate) and
// returns non-overlapping, padded speech intervals sorted by start. A
// model load or inference failure returns ErrVadUnavailable; callers fall
// back to the RMS analyzer.
func (r *Runner) Detect(samples []float32) ([]Interval, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	sd := r.detector
	if sd == nil {
		var err error
		sd, err = loadSession(r.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load VAD session: %w: %w", err, pipelineerr.ErrVadUnavailable)
		}
	}

	if err := sd.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset VAD session: %w: %w", err, pipelineerr.ErrVadUnavailable)
	}

	segments, err := sd.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("VAD inference failed: %w: %w", err, pipelineerr.ErrVadUnavailable)
	}

	intervals := make([]Interval, 0, len(segments))
	minSpeechSec := float64(r.cfg.MinSpeechMs) / 1000.0
	for _, seg := range segments {
		start, end := float64(seg.SpeechStartAt), float64(seg.SpeechEndAt)
		if end-start < minSpeechSec {
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}

	return padAndRedistribute(intervals, r.cfg.SpeechPadMs, float64(len(samples))/float64(r.cfg.SampleRate)), nil
}

// padAndRedistribute grows each interval by padMs on each side, clamped to
// [0, clipDuration]. When two adjacent intervals' combined padding would
// overlap, each side receives half of the available gap instead.
func padAndRedistribute(intervals []Interval, padMs int, clipDuration float64) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })

	pad := float64(padMs) / 1000.0
	padded := make([]Interval, len(intervals))
	for i, iv := range intervals {
		padded[i] = Interval{Start: iv.Start - pad, End: iv.End + pad}
	}

	for i := 0; i < len(padded); i++ {
		if padded[i].Start < 0 {
			padded[i].Start = 0
		}
		if padded[i].End > clipDuration {
			padded[i].End = clipDuration
		}
		if i > 0 {
			gap := padded[i].Start - padded[i-1].End
			if gap < 0 {
				// Overlapping padding: split the available unpadded gap
				// between the original intervals in half.
				originalGap := intervals[i].Start - intervals[i-1].End
				half := originalGap / 2
				if half < 0 {
					half = 0
				}
				padded[i-1].End = intervals[i-1].End + half
				padded[i].Start = intervals[i].Start - half
			}
		}
	}

	return padded
}
