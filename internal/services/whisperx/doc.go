// Package whisperx runs WhisperX through uvx and adapts its word-aligned JSON
// output into detect.Transcript values. Service implements
// detect.AudioDetector.
package whisperx
