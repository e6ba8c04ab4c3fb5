// Package audio builds and inspects PCM WAV narration audio.
//
// The synthetic TTS provider uses Silence to produce a placeholder track
// sized to the script length, and the pipeline uses Duration to read the
// length of WAV output without shelling out to ffprobe.
//
// Primary entry points:
//   - Silence / SilenceForWords: render silent 16-bit PCM WAV data
//   - Duration: parse a WAV header and return its length in seconds
//   - Concat: join chunked speech responses into one track
package audio
