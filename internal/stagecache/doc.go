// Package stagecache owns the per-input workspace where intermediate
// artifacts live between runs.
//
// Each source video maps to an identity (its sanitized name, optionally
// suffixed with a content hash) and a directory under the configured work
// dir. A stage counts as done only when its artifact has been published with
// an atomic rename, so interrupted runs never leave a half-written artifact
// that a later run would trust. An advisory file lock keeps two invocations
// from working on the same input at once.
package stagecache
