// Package stream reconciles per-chunk audio and video analysis for
// continuous input and renders each chunk once both analyses have reported.
//
// Callers submit chunks, call Poll regularly to move analysis results into
// the reconciliation table, and pop rendered chunks with GetReadyChunk.
// Output arrives in completion order; callers that need presentation order
// sort by chunk id. A chunk with only one analysis result at Close is
// dropped rather than emitted uncensored on one side.
package stream
