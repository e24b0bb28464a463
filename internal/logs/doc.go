// Package logs reads vsub's log file for the `vsub logs` command: the last N
// lines, optionally followed as new lines are appended.
package logs
