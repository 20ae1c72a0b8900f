// Package sttclient wraps the external speech-to-text engine: a child
// process that, given a mono 16 kHz PCM/WAV file, writes sibling *.txt
// and *.json outputs. This mirrors the teacher's whisper.cpp binding's
// Config/NewContext/Transcribe shape, translated from a cgo call into a
// subprocess invocation plus sidecar-file parsing.
package sttclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/castforge/chapterpipe/pipelineerr"
)

// Config names the engine binary, model, and run options.
type Config struct {
	BinaryPath string
	ModelPath  string
	Language   string
	NumThreads int
}

func (c Config) IsValid() error {
	if c.BinaryPath == "" {
		return fmt.Errorf("invalid BinaryPath: should not be empty: %w", pipelineerr.ErrInvalidInput)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty: %w", pipelineerr.ErrInvalidInput)
	}
	if numCPU := runtime.NumCPU(); c.NumThreads <= 0 || c.NumThreads > numCPU {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]: %w", numCPU, pipelineerr.ErrInvalidInput)
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("invalid ModelPath: failed to stat model file: %w: %w", err, pipelineerr.ErrInvalidInput)
	}
	return nil
}

// Segment is one time-aligned hypothesis from the engine's JSON output.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is a transcription outcome: the plain-text transcript (trusted
// for word-count checks), the time-aligned segments, and whether the
// segments came with genuine per-token times.
type Result struct {
	Text           string
	Segments       []Segment
	SegmentsSource string // "tokens" or "phrase"
}

type jsonSegment struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Text   string  `json:"text"`
	Tokens []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"tokens"`
}

type jsonOutput struct {
	Segments []jsonSegment `json:"segments"`
}

// Client invokes the external STT engine and parses its sidecar output
// files.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Client{cfg: cfg}, nil
}

// Transcribe invokes the engine on wavPath, which must already be mono
// 16 kHz PCM, and reads the resulting outputPrefix.txt/.json sidecar
// files. Engine failure or missing sidecar output is reported as
// ErrSTT.
func (c *Client) Transcribe(ctx context.Context, wavPath, outputPrefix string) (Result, error) {
	args := []string{
		"-m", c.cfg.ModelPath,
		"-f", wavPath,
		"-l", c.cfg.Language,
		"-t", strconv.Itoa(c.cfg.NumThreads),
		"-otxt",
		"-oj",
		"-of", outputPrefix,
	}

	cmd := exec.CommandContext(ctx, c.cfg.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("engine invocation failed: %s: %w: %w", stderr.String(), err, pipelineerr.ErrSTT)
	}

	text, err := os.ReadFile(outputPrefix + ".txt")
	if err != nil {
		return Result{}, fmt.Errorf("failed to read transcript text: %w: %w", err, pipelineerr.ErrSTT)
	}

	jsonBytes, err := os.ReadFile(outputPrefix + ".json")
	if err != nil {
		return Result{}, fmt.Errorf("failed to read transcript segments: %w: %w", err, pipelineerr.ErrSTT)
	}

	segments, source, err := parseSegments(jsonBytes)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse transcript segments: %w: %w", err, pipelineerr.ErrSTT)
	}

	return Result{
		Text:           strings.TrimSpace(string(text)),
		Segments:       segments,
		SegmentsSource: source,
	}, nil
}

// parseSegments decodes the engine's JSON segment list. Pulled out of
// Transcribe so the source-distinguishing logic is testable without a
// real engine binary. A segment exposing per-token times is reported as
// segmentsSource "tokens"; otherwise "phrase", signaling that §3's
// linear rescaling may be needed.
func parseSegments(raw []byte) ([]Segment, string, error) {
	var out jsonOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, "", err
	}

	source := "phrase"
	segments := make([]Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		if len(s.Tokens) > 0 {
			source = "tokens"
			for _, tok := range s.Tokens {
				segments = append(segments, Segment{Start: tok.Start, End: tok.End, Text: tok.Text})
			}
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	return segments, source, nil
}
