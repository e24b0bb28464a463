// Package ledger records vsub runs and their stage outcomes in SQLite.
//
// The ledger is history only: stage completion is decided by the workspace
// artifacts, never by ledger rows. It backs `vsub history` and gives each run
// a UUID that is also attached to its log lines. A config with no ledger path
// yields a nil *Store whose methods do nothing.
package ledger
