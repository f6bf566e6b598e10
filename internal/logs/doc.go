// Package logs reads the daemon's log file for the `lecturenotes logs`
// command: the last N lines, optionally narrowed to one job, and a polling
// follow mode that survives the pointer being replaced on daemon restart.
package logs
