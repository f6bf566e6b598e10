// Package notes builds the per-slide note document.
//
// A Generator produces free-form text for one slide from its caption and the
// transcript segments mapped onto it. ParseSections reads that text against a
// fixed four-header grammar, and Assembler combines the parsed sections with
// per-segment metadata into a Note. Every Note carries all five keys; a
// section the generator did not produce is stored as "Omitted".
package notes
