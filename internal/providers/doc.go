// Package providers holds the concrete OCR, text generation and speech
// providers and builds the registry from configuration.
//
// Three tiers are available for every capability:
//
//   - premium: the OpenAI compatible API (vision OCR, chat, speech), sharing
//     one request-rate limiter; registered only when an API key is set
//   - local: tesseract, an Ollama-compatible chat server and espeak-ng
//   - synthetic: empty OCR, a template script and silent narration, which
//     never fail and so terminate every chain
//
// Build reads ranks and the disabled list from the config and validates that
// every capability ends up with at least one provider.
package providers
