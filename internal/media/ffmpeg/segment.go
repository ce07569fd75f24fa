package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Segment cuts source into fixed-length chunks under dir. Keyframes are
// forced on every boundary so each chunk decodes on its own.
func (t *Tool) Segment(ctx context.Context, source, dir string, seconds float64, hasVideo bool) ([]string, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("segment: chunk length must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: ensure dir: %w", err)
	}
	ext := filepath.Ext(source)
	if ext == "" {
		ext = ".mkv"
	}
	length := formatSeconds(seconds)
	args := []string{"-i", source}
	if hasVideo {
		args = append(args,
			"-c:v", "libx264", "-preset", "ultrafast",
			"-force_key_frames", "expr:gte(t,n_forced*"+length+")",
		)
	}
	args = append(args,
		"-c:a", "aac",
		"-f", "segment",
		"-segment_time", length,
		"-reset_timestamps", "1",
		filepath.Join(dir, "chunk_%06d"+ext),
	)
	if err := t.Run(ctx, args...); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "chunk_*"+ext))
	if err != nil {
		return nil, fmt.Errorf("segment: list chunks: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// WriteConcatList writes an ffmpeg concat demuxer playlist for files.
func WriteConcatList(path string, files []string) error {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("concat list: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Concat joins the files listed in a concat playlist without re-encoding.
func (t *Tool) Concat(ctx context.Context, listPath, dest string) error {
	if err := t.Run(ctx, "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", dest); err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	return nil
}
