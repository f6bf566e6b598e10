// Package main hosts the lecturenotes CLI.
//
// The Cobra command tree runs the daemon in the foreground (serve), submits
// recordings and decks over the HTTP API, polls and prints job results, and
// browses lecture history. Local-only commands (config, doctor, logs) work without
// a running daemon.
//
// Commands stay thin: request building and decoding live in
// internal/client, and every daemon-side behavior lives behind the API.
package main
