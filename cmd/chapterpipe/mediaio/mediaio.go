// Package mediaio wraps the external media transcoder and metadata probe
// collaborators described by the pipeline's external interfaces: reading
// raw PCM for a time range, probing chapter metadata, and the shared
// accurate-extract/normalize/concat invocations used by loudness and
// splice.
package mediaio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"

	"github.com/castforge/chapterpipe/pipelineerr"
)

// Transcoder invokes the external media transcoder binary (an ffmpeg-like
// child process) and the metadata probe binary (an ffprobe-like child
// process).
type Transcoder struct {
	TranscoderPath string
	ProbePath      string
	NumThreads     int
}

func New(transcoderPath, probePath string, numThreads int) *Transcoder {
	return &Transcoder{TranscoderPath: transcoderPath, ProbePath: probePath, NumThreads: numThreads}
}

// ProbeChapter is one entry of the probe's chapters array.
type ProbeChapter struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Tags      struct {
		Title string `json:"title"`
	} `json:"tags"`
}

type probeResult struct {
	Chapters []ProbeChapter `json:"chapters"`
}

// Chapter is a decoded, validated chapter entry.
type Chapter struct {
	Index int
	Title string
	Start float64
	End   float64
}

// Probe queries the container's embedded chapter metadata. Invalid
// entries (non-numeric times, end <= start) abort the whole run, per the
// probe contract.
func (t *Transcoder) Probe(ctx context.Context, inputPath string) ([]Chapter, error) {
	cmd := exec.CommandContext(ctx, t.ProbePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_chapters",
		inputPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w: %w", err, pipelineerr.ErrMediaIO)
	}

	return parseProbeOutput(out)
}

// parseProbeOutput decodes and validates the probe's JSON chapters array.
// Pulled out of Probe so the validation rules are testable without a real
// probe binary.
func parseProbeOutput(out []byte) ([]Chapter, error) {
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("probe output parse failed: %w: %w", err, pipelineerr.ErrMediaIO)
	}

	chapters := make([]Chapter, 0, len(res.Chapters))
	for i, pc := range res.Chapters {
		start, err := strconv.ParseFloat(pc.StartTime, 64)
		if err != nil || math.IsNaN(start) || math.IsInf(start, 0) {
			return nil, fmt.Errorf("chapter %d has invalid start_time %q: %w", i, pc.StartTime, pipelineerr.ErrInvalidInput)
		}
		end, err := strconv.ParseFloat(pc.EndTime, 64)
		if err != nil || math.IsNaN(end) || math.IsInf(end, 0) {
			return nil, fmt.Errorf("chapter %d has invalid end_time %q: %w", i, pc.EndTime, pipelineerr.ErrInvalidInput)
		}
		if end <= start {
			return nil, fmt.Errorf("chapter %d has end <= start: %w", i, pipelineerr.ErrInvalidInput)
		}

		chapters = append(chapters, Chapter{
			Index: i,
			Title: pc.Tags.Title,
			Start: start,
			End:   end,
		})
	}

	return chapters, nil
}

// ReadSamples pulls mono float32 PCM for [start, start+duration) from path
// at sampleRate, decoded as little-endian IEEE-754 32-bit samples. Returns
// an empty buffer for non-positive duration, or if the transcoder produced
// zero bytes. Never retries.
func (t *Transcoder) ReadSamples(ctx context.Context, path string, start, duration float64, sampleRate int) ([]float32, error) {
	if duration <= 0 {
		return nil, nil
	}

	args := []string{
		"-ss", strconv.FormatFloat(start, 'f', 6, 64),
		"-t", strconv.FormatFloat(duration, 'f', 6, 64),
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le",
		"-loglevel", "error",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, t.TranscoderPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("read samples failed: %s: %w: %w", stderr.String(), err, pipelineerr.ErrMediaIO)
	}
	return decodeF32LE(out), nil
}

// decodeF32LE decodes a raw little-endian IEEE-754 32-bit sample buffer.
// A trailing partial sample (fewer than 4 bytes) is dropped.
func decodeF32LE(raw []byte) []float32 {
	if len(raw) == 0 {
		return nil
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// ExtractOptions parameterize an accurate (re-encoded) extract of a time
// range from an input file.
type ExtractOptions struct {
	Start        float64
	Duration     float64
	ReencodeVideo bool
	VideoCRF     int
	VideoPreset  string
	AudioCodec   string
	AudioBitrate string
}

// ExtractAccurate extracts [Start, Start+Duration) from src into dst using
// an accurate re-encode (not stream-copy), so cut points fall exactly on
// sample boundaries. Video is stream-copied unless ReencodeVideo is set.
func (t *Transcoder) ExtractAccurate(ctx context.Context, src, dst string, opts ExtractOptions) error {
	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(opts.Start, 'f', 6, 64),
		"-i", src,
		"-t", strconv.FormatFloat(opts.Duration, 'f', 6, 64),
	}

	if opts.ReencodeVideo {
		args = append(args, "-c:v", "libx264", "-crf", strconv.Itoa(opts.VideoCRF), "-preset", opts.VideoPreset)
	} else {
		args = append(args, "-c:v", "copy")
	}

	args = append(args,
		"-c:a", opts.AudioCodec,
		"-b:a", opts.AudioBitrate,
		"-c:s", "copy",
		"-map_chapters", "-1",
		"-threads", strconv.Itoa(t.NumThreads),
		"-loglevel", "error",
		dst,
	)

	return t.run(ctx, args)
}

// Concat concatenates parts via a filter-graph, video-concatenated and
// audio resampled with async resampling to eliminate PTS drift, encoding
// video H.264 at crf/preset and audio with the standard codec/bitrate.
func (t *Transcoder) Concat(ctx context.Context, parts []string, dst string, crf int, preset, audioCodec, audioBitrate string) error {
	if len(parts) == 0 {
		return fmt.Errorf("concat requires at least one part: %w", pipelineerr.ErrSplice)
	}

	args := []string{"-y"}
	for _, p := range parts {
		args = append(args, "-i", p)
	}

	var filter string
	for i := range parts {
		filter += fmt.Sprintf("[%d:v:0][%d:a:0]", i, i)
	}
	filter += fmt.Sprintf("concat=n=%d:v=1:a=1[v][ac];[ac]aresample=async=1[a]", len(parts))

	args = append(args,
		"-filter_complex", filter,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-crf", strconv.Itoa(crf), "-preset", preset,
		"-c:a", audioCodec, "-b:a", audioBitrate,
		"-threads", strconv.Itoa(t.NumThreads),
		"-loglevel", "error",
		dst,
	)

	return t.run(ctx, args)
}

// StreamCopyTrim performs a fast, non-re-encoded trim to [0, end). Used
// for the "tail-only cut" splice classification where an accurate re-encode
// is unnecessary since the cut falls at the original start.
func (t *Transcoder) StreamCopyTrim(ctx context.Context, src, dst string, end float64) error {
	args := []string{
		"-y",
		"-i", src,
		"-t", strconv.FormatFloat(end, 'f', 6, 64),
		"-c", "copy",
		"-map_chapters", "-1",
		"-loglevel", "error",
		dst,
	}
	return t.run(ctx, args)
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.TranscoderPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Error("transcoder invocation failed", slog.String("err", err.Error()), slog.String("stderr", stderr.String()))
		return fmt.Errorf("transcoder invocation failed: %w: %w", err, pipelineerr.ErrMediaIO)
	}
	return nil
}
