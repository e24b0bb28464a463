// Package subtitles renders merged transcript chunks as SRT files and reads
// them back for status reporting.
//
// Output is written atomically in the configured character encoding. Text
// that the target encoding cannot represent fails with ErrEncoding instead of
// being substituted.
package subtitles
