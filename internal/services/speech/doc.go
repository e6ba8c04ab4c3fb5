// Package speech is a client for the OpenAI compatible /audio/speech route.
//
// Long scripts are split on sentence boundaries into requests below the
// server's input limit; the WAV responses are joined into one track.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Synthesize: render text to WAV bytes.
// Client.Close: release the underlying HTTP client.
package speech
