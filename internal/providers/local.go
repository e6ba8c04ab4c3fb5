package providers

import (
	"context"

	"mangarecap/internal/config"
	"mangarecap/internal/language"
	"mangarecap/internal/provider"
	"mangarecap/internal/services/espeak"
	"mangarecap/internal/services/tesseract"
)

// TesseractOCR reads page text with the local tesseract binary.
type TesseractOCR struct {
	client *tesseract.Client
}

func (p *TesseractOCR) ID() string { return config.ProviderTesseract }

func (p *TesseractOCR) Available() error { return p.client.Available() }

func (p *TesseractOCR) ExtractText(ctx context.Context, page []byte) (string, error) {
	return p.client.Recognize(ctx, page)
}

// EspeakTTS narrates offline with espeak-ng using the narration language as voice.
type EspeakTTS struct {
	client *espeak.Client
}

func (p *EspeakTTS) ID() string { return config.ProviderEspeak }

func (p *EspeakTTS) Available() error { return p.client.Available() }

func (p *EspeakTTS) Synthesize(ctx context.Context, req provider.SpeechRequest) (provider.Speech, error) {
	data, err := p.client.Synthesize(ctx, req.Text, language.Normalize(req.Language))
	if err != nil {
		return provider.Speech{}, err
	}
	return wavSpeech(data)
}
