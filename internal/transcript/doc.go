// Package transcript defines the timed text chunk shared by the transcription,
// merge, and subtitle stages, and persists chunk lists as JSON artifacts.
//
// Save publishes atomically so an interrupted write never leaves a file that
// Load would accept. Load classifies failures: a missing file is
// services.ErrNotFound (the stage has not run), anything unreadable is
// services.ErrFormat and is never discarded automatically.
package transcript
