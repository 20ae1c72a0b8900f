// Package loudness implements the two-pass EBU-R128 analysis and render
// the pipeline applies before transcription, per C5.
package loudness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/castforge/chapterpipe/pipelineerr"
)

const (
	prefilter = "highpass=f=80,afftdn=nf=-25"

	targetIntegrated = -16.0
	targetRange      = 11.0
	targetTruePeak   = -1.5
)

// Analysis is the loudnorm filter's measured values, kept stringified as
// the render pass consumes them verbatim.
type Analysis struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	TargetOffset      string `json:"target_offset"`
}

// Normalizer runs the analysis and render passes against the configured
// transcoder binary.
type Normalizer struct {
	TranscoderPath string
	NumThreads     int
	ReencodeVideo  bool
	VideoCRF       int
	VideoPreset    string
	AudioCodec     string
	AudioBitrate   string
}

var loudnormJSONRe = regexp.MustCompile(`(?s)\{.*\}`)

// Analyze runs the first pass: prefilter then integrated-loudness
// measurement, returning the five measured values the render pass needs.
func (n *Normalizer) Analyze(ctx context.Context, src string) (Analysis, error) {
	filter := fmt.Sprintf("%s,loudnorm=I=%g:LRA=%g:TP=%g:print_format=json",
		prefilter, targetIntegrated, targetRange, targetTruePeak)

	args := []string{
		"-i", src,
		"-af", filter,
		"-f", "null",
		"-threads", strconv.Itoa(n.NumThreads),
		"-loglevel", "info",
		"-",
	}

	cmd := exec.CommandContext(ctx, n.TranscoderPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Analysis{}, fmt.Errorf("loudnorm analysis failed: %w: %w", err, pipelineerr.ErrMediaIO)
	}

	return parseLoudnormJSON(stderr.Bytes())
}

func parseLoudnormJSON(output []byte) (Analysis, error) {
	match := loudnormJSONRe.Find(output)
	if match == nil {
		return Analysis{}, fmt.Errorf("no loudnorm JSON block found in transcoder output: %w", pipelineerr.ErrMediaIO)
	}

	var a Analysis
	if err := json.Unmarshal(match, &a); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse loudnorm JSON: %w: %w", err, pipelineerr.ErrMediaIO)
	}
	return a, nil
}

// Render runs the second pass: re-apply the prefilter, then apply
// loudness normalization using the measured values from Analyze with
// linear=true. Audio is re-encoded to AAC-LC at the configured bitrate;
// video is stream-copied unless ReencodeVideo requests an accurate
// re-encode. Subtitles are copied, chapter metadata is stripped.
func (n *Normalizer) Render(ctx context.Context, src, dst string, a Analysis) error {
	filter := fmt.Sprintf(
		"%s,loudnorm=I=%g:LRA=%g:TP=%g:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
		prefilter, targetIntegrated, targetRange, targetTruePeak,
		a.InputI, a.InputTP, a.InputLRA, a.InputThresh, a.TargetOffset,
	)

	args := []string{"-y", "-i", src, "-af", filter}

	if n.ReencodeVideo {
		args = append(args, "-c:v", "libx264", "-crf", strconv.Itoa(n.VideoCRF), "-preset", n.VideoPreset)
	} else {
		args = append(args, "-c:v", "copy")
	}

	args = append(args,
		"-c:a", n.AudioCodec, "-b:a", n.AudioBitrate,
		"-c:s", "copy",
		"-map_chapters", "-1",
		"-threads", strconv.Itoa(n.NumThreads),
		"-loglevel", "error",
		dst,
	)

	cmd := exec.CommandContext(ctx, n.TranscoderPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("loudnorm render failed: %s: %w: %w", stderr.String(), err, pipelineerr.ErrMediaIO)
	}
	return nil
}
