// Package espeak wraps the espeak-ng CLI as an offline narration voice.
//
// Text is piped on stdin and WAV audio is read from stdout.
package espeak
