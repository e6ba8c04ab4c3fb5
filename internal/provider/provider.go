package provider

import (
	"context"
	"fmt"
)

// Kind names a capability a provider can serve.
type Kind string

const (
	KindOCR     Kind = "ocr"
	KindTextGen Kind = "text_gen"
	KindTTS     Kind = "tts"
)

// Kinds lists every capability in pipeline order.
var Kinds = []Kind{KindOCR, KindTextGen, KindTTS}

// Cost tiers a provider's resource usage.
type Cost string

const (
	CostFree    Cost = "free"
	CostLocal   Cost = "local"
	CostPremium Cost = "premium"
)

// Descriptor is the immutable capability metadata attached at registration.
type Descriptor struct {
	Kind            Kind
	ProviderID      string
	Rank            int
	RequiresNetwork bool
	Cost            Cost
}

// Provider is the common surface of every capability implementation.
type Provider interface {
	ID() string
}

// Availability is implemented by providers that can tell cheaply, before a
// call, that they cannot serve (missing binary, missing credentials).
type Availability interface {
	Available() error
}

// OCR extracts text from one page image.
type OCR interface {
	Provider
	ExtractText(ctx context.Context, page []byte) (string, error)
}

// Task selects the prompt used by a text generator.
type Task string

const (
	TaskSummary Task = "summary"
	TaskScript  Task = "script"
)

// TextRequest carries the inputs of one text generation call.
type TextRequest struct {
	Task          Task
	Pages         []string
	Summary       string
	Language      string
	ChapterTitle  string
	ChapterNumber int
}

// TextGen produces summaries and narration scripts.
type TextGen interface {
	Provider
	Generate(ctx context.Context, req TextRequest) (string, error)
}

// SpeechRequest carries the inputs of one synthesis call.
type SpeechRequest struct {
	Text     string
	Language string
	Voice    string
}

// Speech is synthesized audio. Duration is zero when the provider cannot
// measure it; callers fill it in with a media probe.
type Speech struct {
	Audio    []byte
	Format   string
	Duration float64
}

// TTS synthesizes narration audio.
type TTS interface {
	Provider
	Synthesize(ctx context.Context, req SpeechRequest) (Speech, error)
}

// implements reports whether p satisfies the interface required by kind.
func implements(kind Kind, p Provider) error {
	var ok bool
	switch kind {
	case KindOCR:
		_, ok = p.(OCR)
	case KindTextGen:
		_, ok = p.(TextGen)
	case KindTTS:
		_, ok = p.(TTS)
	default:
		return fmt.Errorf("unknown capability %q", kind)
	}
	if !ok {
		return fmt.Errorf("provider %q does not implement %s", p.ID(), kind)
	}
	return nil
}
