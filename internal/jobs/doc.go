// Package jobs tracks pipeline jobs and their progress.
//
// Manager is the registry every submission goes through. It hands out job
// ids, records progress reported by the runner, and fronts the results
// store so callers see notes only through job-aware reads. Progress is
// monotonic while a job runs; the only backwards move is the terminal -1 on
// failure. Update never fails: unknown ids and finished jobs are ignored so
// background work can report without error handling.
package jobs
