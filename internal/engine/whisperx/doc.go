// Package whisperx runs WhisperX through uvx against a single WAV segment and
// converts its JSON output into transcript chunks.
//
// uvx resolves and caches the whisperx package on first use, so no Python
// environment needs to be managed by vsub. CUDA builds pull torch from the
// PyTorch wheel index.
package whisperx
