// Package analysis maps raw detector output onto the pipeline's shapes:
// transcripts become mute intervals, frame verdicts become unsafe intervals
// plus per-sample object observations for the region tracker. Both
// analyzers work on any media span; callers pass the span's offset on their
// own timeline.
package analysis
