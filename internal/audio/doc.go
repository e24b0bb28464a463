// Package audio turns a media file into silence-delimited WAV segments.
//
// The flow is Extract (ffmpeg to 16 kHz mono PCM), DetectPauses (frame RMS
// against a dBFS threshold), Plan (cut points at silence midpoints bounded by
// a minimum floor and a maximum ceiling), and Split (one WAV per segment,
// each published atomically under an index-encoded name). Detection and
// planning are pure functions over levels and intervals; only Extract and
// Split touch the filesystem.
package audio
