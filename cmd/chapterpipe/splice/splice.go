// Package splice cuts the keep ranges of a clip around refined command
// windows, drops silent leftover fragments, and concatenates the
// survivors into a single stream, per C8.
package splice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/castforge/chapterpipe/mediaio"
	"github.com/castforge/chapterpipe/pipelineerr"
	"github.com/castforge/chapterpipe/timerange"
)

const epsilon = 0.001

// Extractor performs the re-encode/trim/concat child-process
// invocations — satisfied by *mediaio.Transcoder.
type Extractor interface {
	ExtractAccurate(ctx context.Context, src, dst string, opts mediaio.ExtractOptions) error
	StreamCopyTrim(ctx context.Context, src, dst string, end float64) error
	Concat(ctx context.Context, parts []string, dst string, crf int, preset, audioCodec, audioBitrate string) error
}

// SpeechChecker reports whether the media file at path contains any
// detected speech — satisfied by a thin adapter over vad.Runner.Detect.
type SpeechChecker interface {
	HasSpeech(ctx context.Context, path string) (bool, error)
}

// RenderOptions names the encode tunables for any re-encoded segment or
// concat produced by a splice.
type RenderOptions struct {
	ReencodeVideo bool
	VideoCRF      int
	VideoPreset   string
	AudioCodec    string
	AudioBitrate  string
}

// Splicer cuts, filters, and reassembles a clip around a set of refined
// cut windows.
type Splicer struct {
	Extractor Extractor
	Speech    SpeechChecker
	TempDir   string
	Options   RenderOptions
}

// Splice applies cutWindows (already refined to silence boundaries) to
// src (duration clipDuration) and writes the spliced result to dst. It
// returns the keep ranges actually used, for downstream time re-mapping
// via timerange.ShiftForRemoved.
func (s *Splicer) Splice(ctx context.Context, src, dst string, clipDuration float64, cutWindows []timerange.Range) ([]timerange.Range, error) {
	keep, err := timerange.Subtract(timerange.Range{Start: 0, End: clipDuration}, cutWindows)
	if err != nil {
		return nil, err
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("entire clip removed: %w", pipelineerr.ErrSplice)
	}

	// Full keep: a single range spanning the whole clip.
	if len(keep) == 1 && keep[0].Start <= epsilon && keep[0].End >= clipDuration-epsilon {
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("full-keep copy failed: %w: %w", err, pipelineerr.ErrSplice)
		}
		return keep, nil
	}

	// Tail-only cut: a single keep range starting at 0 but not reaching
	// the clip end.
	if len(keep) == 1 && keep[0].Start <= epsilon && keep[0].End < clipDuration-epsilon {
		if err := s.Extractor.StreamCopyTrim(ctx, src, dst, keep[0].End); err != nil {
			return nil, fmt.Errorf("tail-only trim failed: %w", err)
		}
		return keep, nil
	}

	return s.spliceGeneral(ctx, src, dst, keep)
}

// spliceGeneral extracts every keep range as an accurate segment, drops
// segments with no detected speech, and concatenates the survivors.
func (s *Splicer) spliceGeneral(ctx context.Context, src, dst string, keep []timerange.Range) ([]timerange.Range, error) {
	var segments []string
	var survivors []timerange.Range

	for i, k := range keep {
		segPath := filepath.Join(s.TempDir, fmt.Sprintf("segment-%03d.mkv", i))
		opts := mediaio.ExtractOptions{
			Start:         k.Start,
			Duration:      k.End - k.Start,
			ReencodeVideo: s.Options.ReencodeVideo,
			VideoCRF:      s.Options.VideoCRF,
			VideoPreset:   s.Options.VideoPreset,
			AudioCodec:    s.Options.AudioCodec,
			AudioBitrate:  s.Options.AudioBitrate,
		}
		if err := s.Extractor.ExtractAccurate(ctx, src, segPath, opts); err != nil {
			return nil, fmt.Errorf("segment %d extract failed: %w", i, err)
		}

		hasSpeech, err := s.Speech.HasSpeech(ctx, segPath)
		if err != nil {
			return nil, fmt.Errorf("segment %d speech check failed: %w", i, err)
		}
		if !hasSpeech {
			continue
		}
		segments = append(segments, segPath)
		survivors = append(survivors, k)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("no speech in any segment: %w", pipelineerr.ErrSplice)
	}

	if len(segments) == 1 {
		if err := copyFile(segments[0], dst); err != nil {
			return nil, fmt.Errorf("single-survivor copy failed: %w: %w", err, pipelineerr.ErrSplice)
		}
		return survivors, nil
	}

	if err := s.Extractor.Concat(ctx, segments, dst, s.Options.VideoCRF, s.Options.VideoPreset, s.Options.AudioCodec, s.Options.AudioBitrate); err != nil {
		return nil, fmt.Errorf("concat failed: %w", err)
	}
	return survivors, nil
}

func copyFile(src, dst string) error {
	in, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, in, 0o644)
}
