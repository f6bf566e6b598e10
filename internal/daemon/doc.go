// Package daemon coordinates the long-running lecturenotes process.
//
// It owns the single-instance lock, the HTTP server and the retention
// sweeper. Job execution lives in the workflow runner and routing in the
// api package; the daemon only starts and stops them in the right order.
package daemon
