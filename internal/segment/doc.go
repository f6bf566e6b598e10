// Package segment turns a transcript into fixed-size runs of sentences.
//
// Sentences splits normalized transcript text on sentence terminators and
// line breaks. Split groups those sentences into segments of at most k
// sentences each, joined by a single space. Both functions are pure.
package segment
