// Package services defines shared utilities consumed by the pipeline runner
// and the collaborator adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     as input, external service, or resource errors.
//
// Use these helpers when wiring new collaborator code so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
