// Package provider defines the capability interfaces (OCR, text generation,
// speech synthesis), the registry that orders providers into fallback chains,
// and the invoker that walks a chain until one provider succeeds.
//
// The registry is populated once at startup and only read afterwards. Each
// invocation records a trace of every attempt so callers can report which
// provider served a result and why earlier ones were skipped.
package provider
