// Package results holds per-job slide notes while a job runs and after it
// completes.
//
// Store is implemented in memory (default), on SQLite, and on Redis. Put is
// last-write-wins per slide key and replaces the whole note at once, so a
// reader never sees a note with some sections from one write and some from
// another. Partial and Finalize return Notes, an ordered slice that encodes
// as a JSON object keyed slide1, slide2, ..., slide10 in numeric order.
package results
