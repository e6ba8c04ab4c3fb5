// Package llm provides a chat client for OpenAI compatible endpoints.
//
// The same client serves the hosted API (summaries, scripts and vision OCR)
// and local Ollama-style servers, which expose the same /chat/completions
// route without an API key.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the reply text.
// Client.DescribeImage: send a PNG page to the vision model.
// Client.HealthCheck: verify the endpoint and key by listing models.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty replies and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After is honoured. Context cancellation aborts retries
// immediately.
package llm
