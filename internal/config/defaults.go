package config

const (
	defaultConfigPath         = "~/.config/mangarecap/config.toml"
	defaultWorkDir            = "~/.local/share/mangarecap/work"
	defaultLogDir             = "~/.local/share/mangarecap/logs"
	defaultCacheBackend       = "file"
	defaultCacheTTLSeconds    = 3600
	defaultMemoryTTLSeconds   = 300
	defaultCacheConfigVersion = "v1"
	defaultProviderTimeout    = 120
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel        = "gpt-4o-mini"
	defaultOpenAIVisionModel  = "gpt-4o"
	defaultOpenAITTSModel     = "tts-1"
	defaultOpenAITTSVoice     = "alloy"
	defaultOpenAIRPM          = 60
	defaultOpenAITimeout      = 60
	defaultTesseractBinary    = "tesseract"
	defaultTesseractLanguages = "eng+por"
	defaultOllamaModel        = "llama3.2"
	defaultEspeakBinary       = "espeak-ng"
	defaultNarrationLanguage  = "pt"
	defaultVideoWidth         = 1280
	defaultVideoHeight        = 720
	defaultVideoFPS           = 30
	defaultTitleCardSeconds   = 3
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultMaxWorkers         = 4
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 20
	defaultLogMaxBackups      = 5
	defaultLogMaxAgeDays      = 30
)

var defaultRanks = map[string]int{
	ProviderOpenAI:    10,
	ProviderTesseract: 20,
	ProviderOllama:    20,
	ProviderEspeak:    20,
	ProviderSynthetic: 100,
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Cache: Cache{
			Enabled:          true,
			Backend:          defaultCacheBackend,
			TTLSeconds:       defaultCacheTTLSeconds,
			MemoryEnabled:    true,
			MemoryTTLSeconds: defaultMemoryTTLSeconds,
			ConfigVersion:    defaultCacheConfigVersion,
		},
		Providers: Providers{
			TimeoutSeconds: defaultProviderTimeout,
		},
		OpenAI: OpenAI{
			BaseURL:           defaultOpenAIBaseURL,
			Model:             defaultOpenAIModel,
			VisionModel:       defaultOpenAIVisionModel,
			TTSModel:          defaultOpenAITTSModel,
			TTSVoice:          defaultOpenAITTSVoice,
			RequestsPerMinute: defaultOpenAIRPM,
			TimeoutSeconds:    defaultOpenAITimeout,
		},
		Local: Local{
			TesseractBinary:    defaultTesseractBinary,
			TesseractLanguages: defaultTesseractLanguages,
			OllamaModel:        defaultOllamaModel,
			EspeakBinary:       defaultEspeakBinary,
		},
		Narration: Narration{
			Language: defaultNarrationLanguage,
		},
		Video: Video{
			Width:            defaultVideoWidth,
			Height:           defaultVideoHeight,
			FPS:              defaultVideoFPS,
			TitleCardSeconds: defaultTitleCardSeconds,
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
		},
		Batch: Batch{
			MaxWorkers: defaultMaxWorkers,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
