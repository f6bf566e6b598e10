// Package client is the CLI's HTTP client for the lecturenotes daemon.
//
// It speaks the same routes the web client uses and decodes error bodies
// into *APIError so commands can print the daemon's hint.
package client
