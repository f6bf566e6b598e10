// Package api is the HTTP surface of the lecturenotes daemon.
//
// # Routes
//
// Jobs: POST /api/jobs accepts a multipart upload (audio_file, doc_file,
// skip_transcription, transcript, user_email) and answers 202 with the job
// id. GET /status/:id and GET /result/:id are the polling endpoints used by
// the web client; /api/jobs exposes list, snapshot, partial notes, cancel
// and delete. GET /ws/status/:id streams progress over a websocket until
// the job reaches a terminal state.
//
// History: /api/history lists, fetches, deletes and searches saved
// lectures of the user named by the X-User-Email header.
//
// Realtime: /api/realtime/start, /api/realtime/:id/process and
// /api/realtime/:id drive live sessions.
//
// Health: GET /api/health runs the preflight checks.
//
// # Design Notes
//
// Every route except health requires "Authorization: Bearer <token>" when
// api.token is set; websocket clients may pass ?token= instead. Errors are
// JSON objects with error, kind and hint fields, and the HTTP status is
// derived from the services error kind. Note maps are always encoded in
// slide order.
package api
