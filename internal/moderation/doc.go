// Package moderation holds the content rules: the profanity lexicon,
// transcript severity scoring, word-level mute segment synthesis and the
// object selection applied to vision detections.
package moderation
