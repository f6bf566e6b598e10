// Package workflow runs lecture jobs through the note pipeline.
//
// The Runner owns one goroutine per job. Each job is prepared (deck
// converted, pages counted) and then advanced through sequential stages:
// transcribe, slides (rasterize + caption), segment, map, importance, notes,
// history. Progress is reported to the jobs.Manager at fixed checkpoints and
// each slide note is persisted as soon as it is generated, so a failure
// late in the run still leaves the finished slides queryable.
//
// Collaborators (transcription, rasterizing, captioning, embeddings, note
// generation, importance classification, history) are interfaces declared
// in collaborators.go so tests can drive the runner with fakes.
//
// A failing stage sets the job to -1 with the message "<stage> failed:
// <cause>". Input problems found before any stage runs (for example a deck
// with no pages) reject the job without it ever entering running.
package workflow
