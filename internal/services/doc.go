// Package services defines shared utilities consumed by the pipeline stages
// and the speech-to-text integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and segment indexes
//     for logging and tracing.
//   - Structured error markers (input, format, engine, encoding) plus the
//     Wrap helper so every failure reaching the CLI carries its stage and a
//     stable classification for exit codes and operator hints.
//
// Recoverable "artifact missing" conditions use ErrNotFound and are treated
// as control flow by callers, never as failures.
package services
