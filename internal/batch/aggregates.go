package batch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mangarecap/internal/checkpoint"
	"mangarecap/internal/fileutil"
	"mangarecap/internal/pipeline"
)

// Aggregate file names written into the run directory.
const (
	ChapterTextsFile     = "chapter_texts.json"
	NarrationScriptsFile = "narration_scripts.json"
)

// ChapterText is one chapter's entry in chapter_texts.json.
type ChapterText struct {
	ChapterID            string              `json:"chapter_id"`
	Chapter              string              `json:"chapter"`
	Number               int                 `json:"number"`
	Dir                  string              `json:"dir"`
	Pages                []pipeline.PageText `json:"pages"`
	TotalPages           int                 `json:"total_pages"`
	HasMeaningfulContent bool                `json:"has_meaningful_content"`
}

// ChapterScript is one chapter's entry in narration_scripts.json.
type ChapterScript struct {
	ChapterID string `json:"chapter_id"`
	Chapter   string `json:"chapter"`
	Number    int    `json:"number"`
	Summary   string `json:"summary,omitempty"`
	Script    string `json:"script"`
	Provider  string `json:"provider"`
	WordCount int    `json:"word_count"`
}

// ScriptMetadata describes the combined narration.
type ScriptMetadata struct {
	WordCount   int       `json:"word_count"`
	Language    string    `json:"language,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NarrationScripts is the document written to narration_scripts.json.
type NarrationScripts struct {
	TotalChapters  int             `json:"total_chapters"`
	Chapters       []ChapterScript `json:"chapters"`
	FullScript     string          `json:"full_script"`
	ScriptMetadata ScriptMetadata  `json:"script_metadata"`
}

// CheckpointLoader reads a chapter's checkpoint; nil means none exists.
type CheckpointLoader interface {
	Load(chapterID string) (*checkpoint.Checkpoint, error)
}

// WriteAggregates collects the OCR texts and narration scripts of every
// chapter in outcomes and writes the two run-level documents into workDir.
// A chapter contributes a stage's artifact only when its checkpoint lists
// that stage as completed, so leftovers from an earlier run are ignored.
func WriteAggregates(workDir string, checkpoints CheckpointLoader, outcomes Outcomes) error {
	texts := make([]ChapterText, 0, len(outcomes))
	scripts := NarrationScripts{Chapters: make([]ChapterScript, 0, len(outcomes))}
	var full []string

	for _, job := range outcomes.Sorted() {
		ch := job.Chapter
		cp, err := checkpoints.Load(ch.ID)
		if err != nil || cp == nil || !cp.Completed(checkpoint.StageOCR) {
			continue
		}
		dir := pipeline.ArtifactDir(workDir, ch.ID)
		ocr, err := pipeline.LoadOCR(dir)
		if err != nil {
			continue
		}
		texts = append(texts, ChapterText{
			ChapterID:            ch.ID,
			Chapter:              ch.Name,
			Number:               ch.Number,
			Dir:                  ch.Dir,
			Pages:                ocr.Pages,
			TotalPages:           ocr.TotalPages,
			HasMeaningfulContent: ocr.HasMeaningfulContent,
		})

		if !cp.Completed(checkpoint.StageScript) {
			continue
		}
		script, err := pipeline.LoadText(dir, pipeline.ScriptFile)
		if err != nil {
			continue
		}
		entry := ChapterScript{
			ChapterID: ch.ID,
			Chapter:   ch.Name,
			Number:    ch.Number,
			Script:    script.Text,
			Provider:  script.Provider,
			WordCount: script.WordCount,
		}
		if summary, err := pipeline.LoadText(dir, pipeline.SummaryFile); err == nil && cp.Completed(checkpoint.StageSummary) {
			entry.Summary = summary.Text
		}
		scripts.Chapters = append(scripts.Chapters, entry)
		scripts.ScriptMetadata.WordCount += script.WordCount
		if scripts.ScriptMetadata.Language == "" {
			scripts.ScriptMetadata.Language = script.Language
		}
		full = append(full, script.Text)
	}
	scripts.TotalChapters = len(scripts.Chapters)
	scripts.FullScript = strings.Join(full, "\n\n")
	scripts.ScriptMetadata.GeneratedAt = time.Now().UTC()

	if err := fileutil.WriteJSONAtomic(filepath.Join(workDir, ChapterTextsFile), texts); err != nil {
		return fmt.Errorf("write chapter texts: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(workDir, NarrationScriptsFile), scripts); err != nil {
		return fmt.Errorf("write narration scripts: %w", err)
	}
	return nil
}
