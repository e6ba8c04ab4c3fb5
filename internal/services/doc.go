// Package services defines shared utilities consumed by the chapter pipeline,
// the provider implementations and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp chapter IDs, stage names, provider IDs and
//     run identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (provider unavailable, chain exhausted, configuration, external tool).
//
// Use these helpers when wiring new stage or provider logic so operational
// behaviour (error classification, observability) stays uniform.
package services
