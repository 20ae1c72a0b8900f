// Package metrics exposes per-run counters via promauto, in the style
// the rest of the retrieval pack wires Prometheus into a processing
// pipeline. chapterpipe has no scrape endpoint of its own; counters are
// dumped into the summary log at the end of a run via Gather.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChaptersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_chapters_processed_total",
		Help: "Chapters that reached a final output file",
	})

	ChaptersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chapterpipe_chapters_skipped_total",
		Help: "Chapters skipped, by reason",
	}, []string{"reason"})

	ChaptersCombined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_chapters_combined_total",
		Help: "Chapters merged into the previous chapter's output",
	})

	JarvisWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_jarvis_warnings_total",
		Help: "Chapters whose final output still contains a leaked wake word",
	})

	EditFlags = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_edit_flags_total",
		Help: "Chapters flagged via an edit command",
	})

	NotesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_notes_total",
		Help: "Note commands recorded across the run",
	})

	SttFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_stt_failures_total",
		Help: "STT engine invocations that failed and fell back",
	})

	VadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chapterpipe_vad_failures_total",
		Help: "VAD invocations that failed and fell back to RMS or full-clip bounds",
	})

	ChapterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chapterpipe_chapter_duration_seconds",
		Help:    "Wall-clock time spent processing one chapter",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// SkipReason is an allowed label value for ChaptersSkipped.
type SkipReason string

const (
	SkipReasonInitialShort SkipReason = "initial-short"
	SkipReasonTrimmedShort SkipReason = "trimmed-short"
	SkipReasonTranscript   SkipReason = "transcript"
	SkipReasonBadTake      SkipReason = "bad-take"
)

func RecordSkip(reason SkipReason) {
	ChaptersSkipped.WithLabelValues(string(reason)).Inc()
}

// Snapshot is a point-in-time dump of run counters, rendered into the
// summary log preamble.
type Snapshot struct {
	ChaptersProcessed int
	ChaptersCombined  int
	JarvisWarnings    int
	EditFlags         int
	NotesRecorded     int
	SttFailures       int
	VadFailures       int
	Skipped           map[string]int
}

// Gather reads the current values of the counters above via the
// prometheus client's own Write() accessor, avoiding a second, redundant
// set of in-memory counters kept by hand alongside the promauto ones.
func Gather() (Snapshot, error) {
	snap := Snapshot{Skipped: map[string]int{}}

	var err error
	if snap.ChaptersProcessed, err = counterValue(ChaptersProcessed); err != nil {
		return snap, err
	}
	if snap.ChaptersCombined, err = counterValue(ChaptersCombined); err != nil {
		return snap, err
	}
	if snap.JarvisWarnings, err = counterValue(JarvisWarnings); err != nil {
		return snap, err
	}
	if snap.EditFlags, err = counterValue(EditFlags); err != nil {
		return snap, err
	}
	if snap.NotesRecorded, err = counterValue(NotesRecorded); err != nil {
		return snap, err
	}
	if snap.SttFailures, err = counterValue(SttFailures); err != nil {
		return snap, err
	}
	if snap.VadFailures, err = counterValue(VadFailures); err != nil {
		return snap, err
	}

	for _, reason := range []SkipReason{SkipReasonInitialShort, SkipReasonTrimmedShort, SkipReasonTranscript, SkipReasonBadTake} {
		v, err := counterValue(ChaptersSkipped.WithLabelValues(string(reason)))
		if err != nil {
			return snap, err
		}
		snap.Skipped[string(reason)] = v
	}

	return snap, nil
}

// counterValue extracts a counter's current value via the standard
// prometheus.Metric.Write hook, the same introspection path a real
// scrape or test assertion would use.
func counterValue(c prometheus.Counter) (int, error) {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0, err
	}
	return int(m.GetCounter().GetValue()), nil
}
