package pipeline

import (
	"context"
	"log/slog"

	"mangarecap/internal/cache"
	"mangarecap/internal/logging"
	"mangarecap/internal/media/audio"
	"mangarecap/internal/provider"
)

// codec converts a provider value to and from its cached bytes.
type codec[T any] struct {
	encode func(T) []byte
	decode func([]byte) (T, bool)
}

var textCodec = codec[string]{
	encode: func(s string) []byte { return []byte(s) },
	decode: func(b []byte) (string, bool) { return string(b), true },
}

var speechCodec = codec[provider.Speech]{
	encode: func(s provider.Speech) []byte { return s.Audio },
	decode: func(b []byte) (provider.Speech, bool) {
		if len(b) == 0 {
			return provider.Speech{}, false
		}
		return provider.Speech{Audio: b, Format: audioFormat(b)}, true
	},
}

func audioFormat(data []byte) string {
	if audio.IsWAV(data) {
		return "wav"
	}
	return "mp3"
}

func (p *Pipeline) cacheKey(kind provider.Kind, fingerprint, providerID string) cache.Key {
	return cache.Key{
		Kind:          string(kind),
		Fingerprint:   fingerprint,
		ProviderID:    providerID,
		ConfigVersion: p.cfg.Cache.ConfigVersion,
	}
}

// invokeCached returns the cached value of the highest ranked provider that
// has one, otherwise walks the chain and caches the winning value. Values from
// free providers are neither read from nor written to the cache so a later run
// retries the real providers.
func invokeCached[P provider.Provider, T any](ctx context.Context, p *Pipeline, logger *slog.Logger, kind provider.Kind, fingerprint string, c codec[T], call func(context.Context, P) (T, error)) (T, string, error) {
	var zero T
	chain, err := p.invoker.Chain(kind)
	if err != nil {
		return zero, "", err
	}

	free := make(map[string]bool, len(chain.Entries))
	for _, entry := range chain.Entries {
		id := entry.Descriptor.ProviderID
		if entry.Descriptor.Cost == provider.CostFree {
			free[id] = true
			continue
		}
		key := p.cacheKey(kind, fingerprint, id)
		data, ok := p.cache.Get(ctx, key)
		if !ok {
			continue
		}
		value, ok := c.decode(data)
		if !ok {
			_ = p.cache.Invalidate(ctx, key)
			continue
		}
		logger.Debug("cache hit",
			logging.String(logging.FieldProvider, id),
			logging.String("kind", string(kind)),
		)
		return value, id, nil
	}

	result, err := provider.Invoke(ctx, p.invoker, kind, call)
	if err != nil {
		return zero, "", err
	}
	if len(result.Trace) > 1 {
		logger.Info("provider fallback used",
			logging.String(logging.FieldProvider, result.ProviderID),
			logging.String("kind", string(kind)),
			logging.Int("attempts", len(result.Trace)),
		)
	}
	if !free[result.ProviderID] {
		key := p.cacheKey(kind, fingerprint, result.ProviderID)
		if err := p.cache.Put(ctx, key, c.encode(result.Value), p.cfg.CacheTTL()); err != nil {
			logging.WarnWithContext(logger, "cache write failed", "cache_write_failed",
				logging.String(logging.FieldProvider, result.ProviderID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next run repeats this provider call"),
			)
		}
	}
	return result.Value, result.ProviderID, nil
}
