// Package textutil provides filesystem-safe name sanitizing shared by the
// workspace cache and the CLI.
package textutil
