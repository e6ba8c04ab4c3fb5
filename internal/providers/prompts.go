package providers

import (
	"fmt"
	"strings"

	"mangarecap/internal/language"
	"mangarecap/internal/provider"
)

const scriptwriterRole = "You are a scriptwriter who adapts manga chapters into narrated recap videos."

// buildPrompt returns the system and user prompts for req. The user prompt is
// empty when there is nothing to send.
func buildPrompt(req provider.TextRequest) (string, string) {
	lang := language.DisplayName(req.Language)
	pages := formatPages(req.Pages)
	switch req.Task {
	case provider.TaskSummary:
		if pages == "" {
			return "", ""
		}
		return scriptwriterRole, fmt.Sprintf(
			"Summarize the following manga chapter text in %s as a short narrative. "+
				"Keep character names, describe the main events in order and ignore OCR noise.\n\n%s",
			lang, pages)
	case provider.TaskScript:
		var b strings.Builder
		fmt.Fprintf(&b, "Write a narration script in %s for a video recap of %s.\n", lang, chapterHeading(req))
		b.WriteString("Write flowing spoken prose with no stage directions, headings or markdown. ")
		b.WriteString("Start by announcing the chapter.\n\n")
		if summary := strings.TrimSpace(req.Summary); summary != "" {
			fmt.Fprintf(&b, "Summary:\n%s\n\n", summary)
		}
		if pages != "" {
			fmt.Fprintf(&b, "Page text:\n%s\n", pages)
		}
		return scriptwriterRole, strings.TrimSpace(b.String())
	default:
		return "", ""
	}
}

func formatPages(pages []string) string {
	var b strings.Builder
	for i, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[Page %d]\n%s\n", i+1, text)
	}
	return strings.TrimSpace(b.String())
}
