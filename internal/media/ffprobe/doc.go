// Package ffprobe wraps the ffprobe CLI and exposes the stream facts the
// pipeline branches on: audio presence, primary video size and frame rate,
// and duration.
package ffprobe
