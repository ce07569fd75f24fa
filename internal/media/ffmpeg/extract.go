package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Speech models expect mono 16kHz PCM.
const (
	speechSampleRate = "16000"
	speechChannels   = "1"
)

// ExtractAudio writes a mono 16kHz WAV of source to dest. When the source
// has no audio stream a silent track of duration seconds is written instead
// so downstream transcription always has input.
func (t *Tool) ExtractAudio(ctx context.Context, source, dest string, hasAudio bool, duration float64) error {
	var args []string
	if hasAudio {
		args = []string{"-i", source, "-vn", "-sn", "-dn"}
	} else {
		if duration <= 0 {
			return fmt.Errorf("extract audio: silent fallback needs a positive duration")
		}
		args = []string{
			"-f", "lavfi",
			"-i", "anullsrc=r=" + speechSampleRate + ":cl=mono",
			"-t", formatSeconds(duration),
		}
	}
	args = append(args, "-ac", speechChannels, "-ar", speechSampleRate, "-c:a", "pcm_s16le", dest)
	if err := t.Run(ctx, args...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// Frame is one sampled still.
type Frame struct {
	Index     int
	Path      string
	Timestamp float64
}

// SampleFrames writes frames of source at fps into dir as JPEGs and
// returns them with source-local timestamps.
func (t *Tool) SampleFrames(ctx context.Context, source, dir string, fps float64) ([]Frame, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("sample frames: fps must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sample frames: ensure dir: %w", err)
	}
	pattern := filepath.Join(dir, "frame_%06d.jpg")
	args := []string{
		"-i", source,
		"-an", "-sn", "-dn",
		"-vf", "fps=" + formatSeconds(fps),
		"-q:v", "3",
		"-start_number", "0",
		pattern,
	}
	if err := t.Run(ctx, args...); err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	return ListFrames(dir, fps)
}

// ListFrames returns the frame_NNNNNN.jpg files in dir ordered by index,
// timestamped at index/fps.
func ListFrames(dir string, fps float64) ([]Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	frames := make([]Frame, 0, len(paths))
	for _, p := range paths {
		digits := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "frame_"), ".jpg")
		idx, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		frames = append(frames, Frame{Index: idx, Path: p, Timestamp: float64(idx) / fps})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
