// Package engine defines the speech-to-text contract the pipeline drives and
// selects a backend from configuration.
//
// Backends transcribe one audio segment at a time and return chunks whose
// times are relative to the start of that segment. The pipeline shifts them
// onto the source timeline. Two backends ship: WhisperX run through uvx
// (subpackage whisperx) and any OpenAI-compatible transcription endpoint
// (subpackage openai).
package engine
