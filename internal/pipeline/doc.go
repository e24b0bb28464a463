// Package pipeline wires the splitter, transcription engine, chunk store,
// merger, and subtitle formatter into one resumable run per source video.
//
// Each stage is probed in the source's workspace before it runs. The newest
// published artifact wins: a present merged transcript skips splitting and
// transcription entirely, a present unmerged transcript skips splitting.
// Transcription persists each segment's chunks as it finishes so an engine
// failure resumes after the last completed segment.
package pipeline
