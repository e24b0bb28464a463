// Package openai transcribes segments through an OpenAI-compatible
// /audio/transcriptions endpoint.
//
// Requests ask for verbose_json so the response carries per-segment
// timestamps. Transient failures (timeouts, 408, 429, 5xx) are retried with
// exponential backoff, honouring Retry-After when the server sends one.
// Any server speaking the same API (a local faster-whisper server, for
// example) works by pointing base_url at it.
package openai
