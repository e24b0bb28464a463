// Package preflight provides readiness checks for the external tools and
// filesystem paths vsub depends on.
//
// The pipeline runs RunAll before extracting audio so a missing ffmpeg or a
// full disk fails in seconds rather than after a long transcription. The
// `vsub check` command shows the same results as a table.
package preflight
