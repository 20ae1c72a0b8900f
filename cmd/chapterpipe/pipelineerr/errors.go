// Package pipelineerr defines the sentinel error kinds shared across the
// chapter processing pipeline. Call sites wrap these with fmt.Errorf and
// "%w" so errors.Is/errors.As keep working up through the Orchestrator.
package pipelineerr

import "errors"

var (
	// ErrInvalidInput covers malformed chapter metadata, out-of-range
	// times, NaN/Inf input, and a missing required external binary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMediaIO covers transcoder spawn/exit/parse failure.
	ErrMediaIO = errors.New("media I/O failure")

	// ErrSTT covers transcription engine failure.
	ErrSTT = errors.New("speech-to-text failure")

	// ErrVadUnavailable covers VAD model load or inference failure.
	ErrVadUnavailable = errors.New("VAD unavailable")

	// ErrSplice covers a splice plan that would produce an empty output.
	ErrSplice = errors.New("splice produced no output")

	// ErrTrimWindow covers a post-pad trim window that collapsed below
	// the configured minimum.
	ErrTrimWindow = errors.New("trim window too small")

	// ErrChapterTooShort is a structured skip, not a failure path.
	ErrChapterTooShort = errors.New("chapter too short")

	// ErrBadTake is a structured skip, not a failure path.
	ErrBadTake = errors.New("bad take")

	// ErrCombinePreviousUnavailable is recoverable: the chapter falls
	// through to normal processing and a warning is logged.
	ErrCombinePreviousUnavailable = errors.New("combine-previous unavailable")
)
