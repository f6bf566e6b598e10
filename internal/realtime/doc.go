// Package realtime accumulates live lecture transcripts per slide.
//
// A session is a directory under realtime.dir holding the optional slide
// deck, every uploaded chunk (audio plus its slide dwell metadata) and a
// result.json document. Each chunk is transcribed and the text is appended
// to the slide the presenter stayed on longest while it was recorded.
// Chunks for one session are processed one at a time; result.json is
// replaced atomically after every append.
package realtime
