package pipeline

import (
	"path/filepath"
	"strings"
	"unicode"

	"mangarecap/internal/fileutil"
)

// Artifact file names inside a chapter's work directory.
const (
	OCRFile       = "ocr.json"
	SummaryFile   = "summary.json"
	ScriptFile    = "script.json"
	AudioMetaFile = "audio.json"
	VideoFile     = "video.mp4"
	ChapterLog    = "chapter.log"
	framesDir     = "frames"
)

// MinMeaningfulWords is the number of words with letters a chapter needs
// before its OCR text counts as meaningful content.
const MinMeaningfulWords = 5

// ArtifactDir returns the directory holding a chapter's artifacts.
func ArtifactDir(workDir, chapterID string) string {
	return filepath.Join(workDir, "chapters", chapterID)
}

// PageText is the OCR output of one page.
type PageText struct {
	Page     int    `json:"page"`
	File     string `json:"file"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

// OCRArtifact is the persisted output of the OCR stage.
type OCRArtifact struct {
	ChapterID            string     `json:"chapter_id"`
	Chapter              string     `json:"chapter"`
	Pages                []PageText `json:"pages"`
	TotalPages           int        `json:"total_pages"`
	HasMeaningfulContent bool       `json:"has_meaningful_content"`
}

// Texts returns the page texts in page order.
func (a OCRArtifact) Texts() []string {
	out := make([]string, len(a.Pages))
	for i, page := range a.Pages {
		out[i] = page.Text
	}
	return out
}

// TextArtifact is the persisted output of the summary and script stages.
type TextArtifact struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	Language  string `json:"language"`
	WordCount int    `json:"word_count"`
}

// AudioArtifact describes the narration written by the audio stage.
type AudioArtifact struct {
	File     string  `json:"file"`
	Format   string  `json:"format"`
	Duration float64 `json:"duration"`
	Provider string  `json:"provider"`
}

// LoadOCR reads the OCR artifact from a chapter directory.
func LoadOCR(dir string) (OCRArtifact, error) {
	var art OCRArtifact
	err := fileutil.ReadJSON(filepath.Join(dir, OCRFile), &art)
	return art, err
}

// LoadText reads a summary or script artifact.
func LoadText(dir, name string) (TextArtifact, error) {
	var art TextArtifact
	err := fileutil.ReadJSON(filepath.Join(dir, name), &art)
	return art, err
}

// LoadAudio reads the narration metadata from a chapter directory.
func LoadAudio(dir string) (AudioArtifact, error) {
	var art AudioArtifact
	err := fileutil.ReadJSON(filepath.Join(dir, AudioMetaFile), &art)
	return art, err
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// MeaningfulContent reports whether texts hold at least MinMeaningfulWords
// words containing a letter.
func MeaningfulContent(texts []string) bool {
	words := 0
	for _, text := range texts {
		for _, word := range strings.Fields(text) {
			if strings.IndexFunc(word, unicode.IsLetter) >= 0 {
				words++
				if words >= MinMeaningfulWords {
					return true
				}
			}
		}
	}
	return false
}
