// Package preflight provides readiness checks for the external services and
// filesystem paths the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check.
//   - GET /api/health and "lecturenotes doctor" report the same results so
//     operators can see why jobs are failing.
//
// Optional backends (redis results, postgres history) are only checked when
// the config selects them.
package preflight
