package providers

import (
	"context"
	"fmt"
	"strings"

	"mangarecap/internal/config"
	"mangarecap/internal/language"
	"mangarecap/internal/media/audio"
	"mangarecap/internal/provider"
	"mangarecap/internal/textutil"
)

// maxTemplateSummary bounds the template summary length in characters.
const maxTemplateSummary = 1200

// BlankOCR reports every page as textless.
type BlankOCR struct{}

func (BlankOCR) ID() string { return config.ProviderSynthetic }

func (BlankOCR) ExtractText(context.Context, []byte) (string, error) { return "", nil }

// TemplateText builds summaries and scripts from the page text without a model.
type TemplateText struct{}

func (TemplateText) ID() string { return config.ProviderSynthetic }

func (TemplateText) Generate(_ context.Context, req provider.TextRequest) (string, error) {
	switch req.Task {
	case provider.TaskSummary:
		var parts []string
		for _, page := range req.Pages {
			if text := textutil.CollapseWhitespace(page); text != "" {
				parts = append(parts, text)
			}
		}
		return textutil.Truncate(strings.Join(parts, " "), maxTemplateSummary), nil
	case provider.TaskScript:
		return templateScript(req), nil
	default:
		return "", fmt.Errorf("unknown task %q", req.Task)
	}
}

// templateScript renders "Capítulo N:" followed by the summary lines.
func templateScript(req provider.TextRequest) string {
	heading := chapterHeading(req)
	lines := []string{heading + ":"}
	for _, line := range strings.Split(req.Summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 1 {
		return heading + "."
	}
	return strings.Join(lines, "\n")
}

func chapterHeading(req provider.TextRequest) string {
	heading := language.ChapterWord(req.Language)
	if req.ChapterNumber > 0 {
		heading = fmt.Sprintf("%s %d", heading, req.ChapterNumber)
	}
	if title := strings.TrimSpace(req.ChapterTitle); title != "" && !strings.EqualFold(title, heading) {
		heading += " - " + title
	}
	return heading
}

// SilentTTS renders silence sized to the script, 0.3 s per word.
type SilentTTS struct{}

func (SilentTTS) ID() string { return config.ProviderSynthetic }

func (SilentTTS) Synthesize(_ context.Context, req provider.SpeechRequest) (provider.Speech, error) {
	seconds := audio.SilenceForWords(textutil.WordCount(req.Text))
	return provider.Speech{
		Audio:    audio.Silence(seconds, audio.DefaultFormat),
		Format:   "wav",
		Duration: seconds,
	}, nil
}
