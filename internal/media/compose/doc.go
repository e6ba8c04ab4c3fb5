// Package compose renders a chapter's frames and narration into a video with
// ffmpeg.
//
// Frames are listed in an ffmpeg concat script with per-frame display times:
// leading title frames hold for the title duration and the page frames share
// the narration length evenly (at least one second each). Narration starts
// after the title card.
//
// Key types:
//   - Compositor: the narrow interface the pipeline depends on
//   - FFmpeg: the ffmpeg-backed implementation
package compose
