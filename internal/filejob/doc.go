// Package filejob censors whole media files.
//
// A job analyses audio and video concurrently, pads and merges the unsafe
// intervals, then renders one output. When nothing is unsafe the input is
// copied verbatim instead of re-encoded.
package filejob
