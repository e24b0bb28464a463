// Package ffprobe provides a typed wrapper around ffprobe JSON output and the
// source validation vsub runs before extracting audio.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties, including language tags
//
// Inspect executes ffprobe; Validate additionally requires an audio stream and
// classifies failures as input errors.
package ffprobe
