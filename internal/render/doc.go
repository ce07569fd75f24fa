// Package render turns mute intervals and blur regions into one ffmpeg
// invocation. Audio inside a mute interval is silenced; each blur region is
// pixelated and blurred while its interval is active. Requests with no
// edits are remuxed with stream copy.
package render
