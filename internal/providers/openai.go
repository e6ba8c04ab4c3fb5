package providers

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"mangarecap/internal/config"
	"mangarecap/internal/media/audio"
	"mangarecap/internal/provider"
	"mangarecap/internal/services/llm"
	"mangarecap/internal/services/speech"
)

// visionInstruction asks the vision model for a transcription only.
const visionInstruction = "Extract all text from this manga page, including dialogue, captions and sound effects. " +
	"Return only the text in reading order, one balloon per line. Return nothing if the page has no text."

// VisionOCR reads page text with the premium vision model.
type VisionOCR struct {
	client  *llm.Client
	limiter *rate.Limiter
}

func (p *VisionOCR) ID() string { return config.ProviderOpenAI }

func (p *VisionOCR) ExtractText(ctx context.Context, page []byte) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.client.DescribeImage(ctx, visionInstruction, page)
}

// ChatText writes summaries and scripts through a chat endpoint. It backs
// both the premium API and a local Ollama server.
type ChatText struct {
	id      string
	client  *llm.Client
	limiter *rate.Limiter
}

func (p *ChatText) ID() string { return p.id }

func (p *ChatText) Generate(ctx context.Context, req provider.TextRequest) (string, error) {
	system, user := buildPrompt(req)
	if user == "" {
		return "", errors.New("nothing to write about")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return p.client.Complete(ctx, system, user)
}

// SpeechTTS narrates through the premium speech endpoint.
type SpeechTTS struct {
	client  *speech.Client
	limiter *rate.Limiter
}

func (p *SpeechTTS) ID() string { return config.ProviderOpenAI }

func (p *SpeechTTS) Synthesize(ctx context.Context, req provider.SpeechRequest) (provider.Speech, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return provider.Speech{}, err
	}
	data, err := p.client.Synthesize(ctx, req.Text, req.Voice)
	if err != nil {
		return provider.Speech{}, err
	}
	return wavSpeech(data)
}

// wavSpeech wraps WAV bytes, measuring their duration when the header allows.
func wavSpeech(data []byte) (provider.Speech, error) {
	if !audio.IsWAV(data) {
		return provider.Speech{}, fmt.Errorf("speech output is not wav (%d bytes)", len(data))
	}
	seconds, err := audio.Duration(data)
	if err != nil {
		seconds = 0
	}
	return provider.Speech{Audio: data, Format: "wav", Duration: seconds}, nil
}
