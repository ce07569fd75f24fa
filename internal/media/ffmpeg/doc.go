// Package ffmpeg wraps the ffmpeg CLI for the preparation steps around
// analysis: speech audio extraction, frame sampling, chunking and concat.
// Failures surface as *CommandError carrying the last lines of stderr.
package ffmpeg
