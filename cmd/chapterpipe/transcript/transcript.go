// Package transcript turns STT segments into normalized words and then
// into a typed command list, per C6. Word normalization follows the
// sanitize-then-split style this codebase uses for transcript text
// elsewhere; the command parser is a total left-to-right scan.
package transcript

import (
	"regexp"
	"strings"

	"github.com/castforge/chapterpipe/timerange"
)

// Segment is a word- or phrase-level STT hypothesis. Input only.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Word is a normalized token with its own uniform-fraction time slice of
// its originating segment.
type Word struct {
	Text  string
	Start float64
	End   float64
}

var (
	nonAlnumRE   = regexp.MustCompile(`[^a-z0-9]+`)
	spacesRE     = regexp.MustCompile(`\s+`)
	blankAudioRE = regexp.MustCompile(`\bblank ?audio\b`)
)

var tokenCorrections = map[string]string{
	"jervis": "jarvis",
}

// multiWordCorrections replace a matched single token with more than one
// output token, applied after the 1:1 corrections above.
var multiWordCorrections = map[string][]string{
	"badtake": {"bad", "take"},
	"batteik": {"bad", "take"},
	"batteke": {"bad", "take"},
}

// normalizeText lowercases s, collapses non-alphanumerics to whitespace,
// drops the phrases "blank audio" and "blankaudio", and splits into raw
// tokens.
func normalizeText(s string) []string {
	lower := strings.ToLower(s)
	collapsed := nonAlnumRE.ReplaceAllString(lower, " ")
	collapsed = blankAudioRE.ReplaceAllString(collapsed, " ")
	collapsed = spacesRE.ReplaceAllString(strings.TrimSpace(collapsed), " ")
	if collapsed == "" {
		return nil
	}
	return strings.Split(collapsed, " ")
}

// ToWords flattens segments into normalized words with uniform in-segment
// timing: each surviving token inherits an equal fractional slice of its
// segment's duration, end-clamped to the segment end.
func ToWords(segments []Segment) []Word {
	var words []Word

	for _, seg := range segments {
		raw := normalizeText(seg.Text)
		if len(raw) == 0 {
			continue
		}

		var tokens []string
		for _, tok := range raw {
			if corrected, ok := tokenCorrections[tok]; ok {
				tok = corrected
			}
			if expansion, ok := multiWordCorrections[tok]; ok {
				tokens = append(tokens, expansion...)
				continue
			}
			tokens = append(tokens, tok)
		}
		if len(tokens) == 0 {
			continue
		}

		duration := seg.End - seg.Start
		slice := duration / float64(len(tokens))

		for i, tok := range tokens {
			start := seg.Start + float64(i)*slice
			end := start + slice
			if end > seg.End {
				end = seg.End
			}
			words = append(words, Word{Text: tok, Start: start, End: end})
		}
	}

	return words
}

// Rescale applies §3's linear rescaling: if the maximum alphanumeric
// segment end doesn't align to clipDuration within 2%, every segment's
// times are scaled by clipDuration / maxEnd. Rescaling is idempotent: a
// second call on already-scaled segments is a near-identity transform up
// to floating error.
func Rescale(segments []Segment, clipDuration float64) []Segment {
	if len(segments) == 0 || clipDuration <= 0 {
		return segments
	}

	maxEnd := 0.0
	for _, s := range segments {
		if nonAlnumRE.ReplaceAllString(strings.ToLower(s.Text), "") == "" {
			continue
		}
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}
	if maxEnd <= 0 {
		return segments
	}

	discrepancy := (clipDuration - maxEnd) / clipDuration
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	if discrepancy <= 0.02 {
		return segments
	}

	factor := clipDuration / maxEnd
	scaled := make([]Segment, len(segments))
	for i, s := range segments {
		scaled[i] = Segment{Start: s.Start * factor, End: s.End * factor, Text: s.Text}
	}
	return scaled
}

// Kind tags a parsed command's variant.
type Kind string

const (
	KindBadTake         Kind = "bad-take"
	KindFilename        Kind = "filename"
	KindEdit            Kind = "edit"
	KindNote            Kind = "note"
	KindSplit           Kind = "split"
	KindCombinePrevious Kind = "combine-previous"
	KindNevermind       Kind = "nevermind"
)

// Command is a tagged variant over the grammar in C6, each carrying the
// TimeRange spanning from the wake word to the close word inclusive.
type Command struct {
	Kind   Kind
	Value  string // non-empty for Filename and Note
	Window timerange.Range
}

// ParserConfig names the grammar's configurable tokens.
type ParserConfig struct {
	WakeWord             string
	CloseWord            string
	CommandStarters       map[string]bool
	CommandTailMaxSeconds float64
}

// Parse scans words left-to-right for wake-word-bracketed commands.
// Parsing is a total function: malformed commands are silently dropped,
// never an error.
func Parse(words []Word, cfg ParserConfig) []Command {
	var commands []Command

	i := 0
	for i < len(words) {
		if words[i].Text != cfg.WakeWord {
			i++
			continue
		}
		wakeIdx := i
		i++

		// Nevermind-cancellation takes precedence over any other command
		// form: scan forward for "nevermind" or the pair "never mind"
		// before the close word.
		if nevermindEnd, ok := scanNevermind(words, i, cfg.CloseWord); ok {
			commands = append(commands, Command{
				Kind:   KindNevermind,
				Window: timerange.Range{Start: words[wakeIdx].Start, End: words[nevermindEnd].End},
			})
			i = nevermindEnd + 1
			continue
		}

		// "combine previous" is recognized whether or not "combine" is
		// listed among the command starters.
		if i >= len(words) || !(cfg.CommandStarters[words[i].Text] || words[i].Text == "combine") {
			continue
		}

		closeIdx, found := findClose(words, i, cfg.CloseWord)
		if !found {
			tailSeconds := words[len(words)-1].End - words[wakeIdx].Start
			if tailSeconds > cfg.CommandTailMaxSeconds {
				continue
			}
			closeIdx = len(words) - 1
		}

		if cmd, ok := parseBody(words, i, closeIdx, cfg); ok {
			cmd.Window = timerange.Range{Start: words[wakeIdx].Start, End: words[closeIdx].End}
			commands = append(commands, cmd)
		}

		i = closeIdx + 1
	}

	return commands
}

func scanNevermind(words []Word, from int, closeWord string) (int, bool) {
	for j := from; j < len(words); j++ {
		if words[j].Text == closeWord {
			return -1, false
		}
		if words[j].Text == "nevermind" {
			return findCloseOrLast(words, j+1, closeWord), true
		}
		if words[j].Text == "never" && j+1 < len(words) && words[j+1].Text == "mind" {
			return findCloseOrLast(words, j+2, closeWord), true
		}
	}
	return -1, false
}

func findCloseOrLast(words []Word, from int, closeWord string) int {
	if idx, ok := findClose(words, from, closeWord); ok {
		return idx
	}
	return len(words) - 1
}

func findClose(words []Word, from int, closeWord string) (int, bool) {
	for j := from; j < len(words); j++ {
		if words[j].Text == closeWord {
			return j, true
		}
	}
	return 0, false
}

// parseBody interprets the body words[from:to] (exclusive of the close
// word at index to) as one of the typed command forms.
func parseBody(words []Word, from, to int, cfg ParserConfig) (Command, bool) {
	body := make([]string, 0, to-from)
	for _, w := range words[from:to] {
		body = append(body, w.Text)
	}
	if len(body) == 0 {
		return Command{}, false
	}

	switch {
	case len(body) >= 2 && body[0] == "bad" && body[1] == "take":
		return Command{Kind: KindBadTake}, true

	case body[0] == "filename":
		value := strings.TrimSpace(strings.Join(body[1:], " "))
		if value == "" {
			return Command{}, false
		}
		return Command{Kind: KindFilename, Value: value}, true

	case len(body) >= 2 && body[0] == "file" && body[1] == "name":
		value := strings.TrimSpace(strings.Join(body[2:], " "))
		if value == "" {
			return Command{}, false
		}
		return Command{Kind: KindFilename, Value: value}, true

	case body[0] == "edit":
		return Command{Kind: KindEdit}, true

	case body[0] == "note":
		value := strings.TrimSpace(strings.Join(body[1:], " "))
		if value == "" {
			return Command{}, false
		}
		return Command{Kind: KindNote, Value: value}, true

	case body[0] == "split":
		return Command{Kind: KindSplit}, true

	case len(body) >= 2 && body[0] == "new" && body[1] == "chapter":
		return Command{Kind: KindSplit}, true

	case len(body) >= 2 && body[0] == "combine" && body[1] == "previous":
		return Command{Kind: KindCombinePrevious}, true
	}

	return Command{}, false
}
