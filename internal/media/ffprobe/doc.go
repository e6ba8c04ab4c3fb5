// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Expectation: what a rendered narration video must contain
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Duration: probes a file for its duration (fills TTS output that
//     arrives without one)
//   - Result.Validate: checks a composed chapter video
package ffprobe
