// Package mapping assigns transcript segments to slides by embedding
// similarity.
//
// Captions are embedded once into an Index. Each segment is then matched
// independently against every caption (cosine similarity, stable argmax with
// ties going to the lowest slide index). There is no global assignment: a
// slide may receive many segments or none.
package mapping
