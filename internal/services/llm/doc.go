// Package llm talks to an OpenAI-compatible endpoint for every model-backed
// step of the pipeline.
//
// # Entry Points
//
// NewClient / FromConfig: construct a client.
// Client.Transcribe: speech-to-text for an audio file.
// Client.Caption: describe a slide image.
// Client.Embed: embed texts (satisfies mapping.Embedder).
// Client.GenerateNote: write the four-section note for a slide (satisfies notes.Generator).
// Client.ClassifyImportance: flag important transcript segments.
// Client.HealthCheck: verify the key and endpoint.
//
// # Retry Behaviour
//
// Calls are retried on HTTP 408/429/5xx and network timeouts with
// exponential backoff (base 1s, max 10s, 3 attempts by default). Context
// cancellation aborts retries immediately. Errors returned to callers carry
// services.ErrExternalService, or services.ErrTimeout for deadline failures.
package llm
