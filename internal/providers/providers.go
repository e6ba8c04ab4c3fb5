package providers

import (
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"mangarecap/internal/config"
	"mangarecap/internal/language"
	"mangarecap/internal/logging"
	"mangarecap/internal/provider"
	"mangarecap/internal/services/espeak"
	"mangarecap/internal/services/llm"
	"mangarecap/internal/services/speech"
	"mangarecap/internal/services/tesseract"
)

type registration struct {
	kind     provider.Kind
	impl     provider.Provider
	network  bool
	cost     provider.Cost
	idConfig string
}

// Build registers every enabled provider described by cfg and validates that
// each capability has a chain.
func Build(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	logger = logging.NewComponentLogger(logger, "providers")
	var regs []registration

	if cfg.HasOpenAI() {
		regs = append(regs, openAIRegistrations(cfg)...)
	}
	regs = append(regs, localRegistrations(cfg)...)
	regs = append(regs, syntheticRegistrations()...)

	registry := provider.NewRegistry()
	for _, reg := range regs {
		if cfg.ProviderDisabled(reg.idConfig) {
			continue
		}
		desc := provider.Descriptor{
			Kind:            reg.kind,
			ProviderID:      reg.impl.ID(),
			Rank:            cfg.ProviderRank(reg.idConfig),
			RequiresNetwork: reg.network,
			Cost:            reg.cost,
		}
		if err := registry.Register(reg.kind, reg.impl, desc); err != nil {
			return nil, err
		}
		logger.Debug("provider registered",
			logging.String("kind", string(reg.kind)),
			logging.String(logging.FieldProvider, desc.ProviderID),
			logging.Int("rank", desc.Rank),
		)
	}
	if err := registry.Validate(provider.Kinds...); err != nil {
		return nil, err
	}
	return registry, nil
}

func openAIRegistrations(cfg *config.Config) []registration {
	rpm := cfg.OpenAI.RequestsPerMinute
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
	chat := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		VisionModel:    cfg.OpenAI.VisionModel,
		Temperature:    0.7,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	voice := speech.NewClient(speech.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.TTSModel,
		Voice:          cfg.OpenAI.TTSVoice,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})
	return []registration{
		{provider.KindOCR, &VisionOCR{client: chat, limiter: limiter}, true, provider.CostPremium, config.ProviderOpenAI},
		{provider.KindTextGen, &ChatText{id: config.ProviderOpenAI, client: chat, limiter: limiter}, true, provider.CostPremium, config.ProviderOpenAI},
		{provider.KindTTS, &SpeechTTS{client: voice, limiter: limiter}, true, provider.CostPremium, config.ProviderOpenAI},
	}
}

func localRegistrations(cfg *config.Config) []registration {
	var regs []registration
	if client, err := tesseract.New(cfg.Local.TesseractBinary, language.TesseractLanguages(cfg.Local.TesseractLanguages, cfg.Narration.Language)); err == nil {
		regs = append(regs, registration{provider.KindOCR, &TesseractOCR{client: client}, false, provider.CostLocal, config.ProviderTesseract})
	}
	if cfg.Local.OllamaURL != "" {
		chat := llm.NewClient(llm.Config{
			BaseURL:        strings.TrimRight(cfg.Local.OllamaURL, "/") + "/v1",
			Model:          cfg.Local.OllamaModel,
			Temperature:    0.7,
			TimeoutSeconds: cfg.Providers.TimeoutSeconds,
		})
		regs = append(regs, registration{provider.KindTextGen, &ChatText{id: config.ProviderOllama, client: chat}, false, provider.CostLocal, config.ProviderOllama})
	}
	if client, err := espeak.New(cfg.Local.EspeakBinary); err == nil {
		regs = append(regs, registration{provider.KindTTS, &EspeakTTS{client: client}, false, provider.CostLocal, config.ProviderEspeak})
	}
	return regs
}

func syntheticRegistrations() []registration {
	return []registration{
		{provider.KindOCR, BlankOCR{}, false, provider.CostFree, config.ProviderSynthetic},
		{provider.KindTextGen, TemplateText{}, false, provider.CostFree, config.ProviderSynthetic},
		{provider.KindTTS, SilentTTS{}, false, provider.CostFree, config.ProviderSynthetic},
	}
}
