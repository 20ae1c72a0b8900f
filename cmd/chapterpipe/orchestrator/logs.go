package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/castforge/chapterpipe/chapter"
	"github.com/castforge/chapterpipe/metrics"
)

// writeLogs renders the three permanent logs (warnings, edits, notes)
// under the output directory and one summary log under the temp
// directory, per the fixed preamble format.
func (p *Pipeline) writeLogs() error {
	warnings := recordsWithWarning(p.log.Records)
	edits := recordsWithEdit(p.log.Records)
	notes := recordsWithNotes(p.log.Records)

	if err := p.writeWarningsLog(warnings); err != nil {
		return fmt.Errorf("failed to write jarvis-warnings.log: %w", err)
	}
	if err := p.writeEditsLog(edits); err != nil {
		return fmt.Errorf("failed to write jarvis-edits.log: %w", err)
	}
	if err := p.writeNotesLog(notes); err != nil {
		return fmt.Errorf("failed to write jarvis-notes.log: %w", err)
	}
	if err := p.writeSummaryLog(); err != nil {
		return fmt.Errorf("failed to write summary log: %w", err)
	}
	return nil
}

func recordsWithWarning(records []chapter.PipelineRecord) []chapter.PipelineRecord {
	var out []chapter.PipelineRecord
	for _, r := range records {
		if len(r.JarvisWarning) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func recordsWithEdit(records []chapter.PipelineRecord) []chapter.PipelineRecord {
	var out []chapter.PipelineRecord
	for _, r := range records {
		if r.EditFlag {
			out = append(out, r)
		}
	}
	return out
}

func recordsWithNotes(records []chapter.PipelineRecord) []chapter.PipelineRecord {
	var out []chapter.PipelineRecord
	for _, r := range records {
		if len(r.NoteEntries) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) preamble(category string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Input: %s\n", p.Cfg.InputPath)
	fmt.Fprintf(&b, "Output dir: %s\n", p.Cfg.OutputDir)
	fmt.Fprintf(&b, "%s: %d\n", category, count)
	return b.String()
}

func chapterLabel(r chapter.PipelineRecord) string {
	return chapter.FormatChapterFilename(r.Chapter.Index+1, r.Chapter.Title)
}

func (p *Pipeline) writeWarningsLog(records []chapter.PipelineRecord) error {
	var b strings.Builder
	b.WriteString(p.preamble("Jarvis warnings", len(records)))
	if len(records) > 0 {
		b.WriteString("Detected in:\n")
		for _, r := range records {
			fmt.Fprintf(&b, "  %s\n", chapterLabel(r))
			if len(r.JarvisWarning) == 0 {
				b.WriteString("    Jarvis timestamps: unavailable\n")
				continue
			}
			stamps := make([]string, len(r.JarvisWarning))
			for i, occ := range r.JarvisWarning {
				stamps[i] = fmt.Sprintf("%.3f-%.3f", occ.Start, occ.End)
			}
			fmt.Fprintf(&b, "    Jarvis timestamps: %s\n", strings.Join(stamps, ", "))
		}
	}
	return os.WriteFile(filepath.Join(p.Cfg.OutputDir, "jarvis-warnings.log"), []byte(b.String()), 0o644)
}

func (p *Pipeline) writeEditsLog(records []chapter.PipelineRecord) error {
	var b strings.Builder
	b.WriteString(p.preamble("Edit flags", len(records)))
	if len(records) > 0 {
		b.WriteString("Detected in:\n")
		for _, r := range records {
			fmt.Fprintf(&b, "  %s\n", chapterLabel(r))
		}
	}
	return os.WriteFile(filepath.Join(p.Cfg.OutputDir, "jarvis-edits.log"), []byte(b.String()), 0o644)
}

func (p *Pipeline) writeNotesLog(records []chapter.PipelineRecord) error {
	noteCount := 0
	for _, r := range records {
		noteCount += len(r.NoteEntries)
	}

	var b strings.Builder
	b.WriteString(p.preamble("Notes", noteCount))
	if noteCount > 0 {
		b.WriteString("Detected in:\n")
		for _, r := range records {
			for _, n := range r.NoteEntries {
				fmt.Fprintf(&b, "  %s @ %.3f: %s\n", chapterLabel(r), n.At, n.Value)
			}
		}
	}
	return os.WriteFile(filepath.Join(p.Cfg.OutputDir, "jarvis-notes.log"), []byte(b.String()), 0o644)
}

func (p *Pipeline) writeSummaryLog() error {
	var b strings.Builder
	b.WriteString(p.preamble("Chapters processed", len(p.log.Records)))
	if snap, err := metrics.Gather(); err == nil {
		fmt.Fprintf(&b, "Counters: processed=%d combined=%d jarvis_warnings=%d edit_flags=%d notes=%d stt_failures=%d vad_failures=%d\n",
			snap.ChaptersProcessed, snap.ChaptersCombined, snap.JarvisWarnings, snap.EditFlags, snap.NotesRecorded, snap.SttFailures, snap.VadFailures)
		for _, reason := range []metrics.SkipReason{metrics.SkipReasonInitialShort, metrics.SkipReasonTrimmedShort, metrics.SkipReasonTranscript, metrics.SkipReasonBadTake} {
			fmt.Fprintf(&b, "Skipped %s: %d\n", reason, snap.Skipped[string(reason)])
		}
	}
	for _, r := range p.log.Records {
		fmt.Fprintf(&b, "  %s: %s", chapterLabel(r), r.Status)
		if r.FallbackNote != "" {
			fmt.Fprintf(&b, " (%s)", strings.TrimSpace(r.FallbackNote))
		}
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(p.tempDir, "summary.log"), []byte(b.String()), 0o644)
}
