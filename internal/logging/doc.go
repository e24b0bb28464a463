// Package logging builds vsub's slog loggers.
//
// Every output gets its own handler: a readable console layout (coloured on
// terminals) or JSON lines. A fan-out handler feeds them all. Context helpers
// tag lines with the run id, stage, segment index and invocation correlation
// id, so concurrent segment work can be told apart in one log file.
package logging
