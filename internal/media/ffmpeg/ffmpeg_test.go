package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type recorder struct {
	calls [][]string
	onRun func(args []string) error
}

func (r *recorder) run(_ context.Context, binary string, args ...string) error {
	r.calls = append(r.calls, append([]string{binary}, args...))
	if r.onRun != nil {
		return r.onRun(args)
	}
	return nil
}

func TestExtractAudioFromSource(t *testing.T) {
	rec := &recorder{}
	tool := New("").WithRunner(rec.run)
	if err := tool.ExtractAudio(context.Background(), "in.mp4", "out.wav", true, 0); err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	args := rec.calls[0]
	if args[0] != "ffmpeg" || !slices.Contains(args, "in.mp4") || args[len(args)-1] != "out.wav" {
		t.Fatalf("unexpected args %v", args)
	}
	if i := slices.Index(args, "-ar"); i < 0 || args[i+1] != "16000" {
		t.Fatalf("missing sample rate: %v", args)
	}
}

func TestExtractAudioSilentFallback(t *testing.T) {
	rec := &recorder{}
	tool := New("ffmpeg").WithRunner(rec.run)
	if err := tool.ExtractAudio(context.Background(), "silent.mp4", "out.wav", false, 4.5); err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	joined := strings.Join(rec.calls[0], " ")
	if !strings.Contains(joined, "anullsrc=r=16000:cl=mono") || !strings.Contains(joined, "-t 4.500") {
		t.Fatalf("silent fallback args: %s", joined)
	}
	if strings.Contains(joined, "silent.mp4") {
		t.Fatalf("source should not be read: %s", joined)
	}
	if err := tool.ExtractAudio(context.Background(), "x", "y", false, 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestSampleFramesTimestamps(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{onRun: func([]string) error {
		for _, name := range []string{"frame_000000.jpg", "frame_000002.jpg", "frame_000001.jpg", "notes.txt"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}}
	frames, err := New("").WithRunner(rec.run).SampleFrames(context.Background(), "in.mp4", dir, 2)
	if err != nil {
		t.Fatalf("SampleFrames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Index != i || f.Timestamp != float64(i)/2 {
			t.Fatalf("frame %d = %+v", i, f)
		}
	}
	if !slices.Contains(rec.calls[0], "fps=2.000") {
		t.Fatalf("fps filter missing: %v", rec.calls[0])
	}
}

func TestRunErrorPropagates(t *testing.T) {
	want := &CommandError{Binary: "ffmpeg", Err: errors.New("exit status 1"), Tail: []string{"moov atom not found"}}
	tool := New("").WithRunner(func(context.Context, string, ...string) error { return want })
	err := tool.ExtractAudio(context.Background(), "a", "b", true, 0)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.txt")
	if err := WriteConcatList(list, []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "it's.mp4")}); err != nil {
		t.Fatalf("WriteConcatList: %v", err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "ffconcat version 1.0\n") || !strings.Contains(text, `it'\''s.mp4`) {
		t.Fatalf("unexpected list:\n%s", text)
	}
}

func TestSegmentForcesKeyframesAndListsChunks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chunks")
	rec := &recorder{onRun: func(args []string) error {
		for _, name := range []string{"chunk_000001.mp4", "chunk_000000.mp4"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
				return err
			}
		}
		return nil
	}}
	tool := New("").WithRunner(rec.run)

	paths, err := tool.Segment(context.Background(), "in.mp4", dir, 2, true)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	want := []string{filepath.Join(dir, "chunk_000000.mp4"), filepath.Join(dir, "chunk_000001.mp4")}
	if !slices.Equal(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	joined := strings.Join(rec.calls[0], " ")
	for _, part := range []string{"-segment_time 2.000", "expr:gte(t,n_forced*2.000)", "-reset_timestamps 1"} {
		if !strings.Contains(joined, part) {
			t.Fatalf("missing %q in %s", part, joined)
		}
	}

	if _, err := tool.Segment(context.Background(), "in.mp4", dir, 0, true); err == nil {
		t.Fatal("expected error for zero chunk length")
	}
}

func TestSegmentAudioOnlySkipsVideoCodec(t *testing.T) {
	rec := &recorder{}
	tool := New("").WithRunner(rec.run)
	if _, err := tool.Segment(context.Background(), "in.mp3", t.TempDir(), 5, false); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if slices.Contains(rec.calls[0], "-c:v") {
		t.Fatalf("audio segmentation should not encode video: %v", rec.calls[0])
	}
}

func TestConcatCopiesStreams(t *testing.T) {
	rec := &recorder{}
	tool := New("").WithRunner(rec.run)
	if err := tool.Concat(context.Background(), "list.txt", "out.mp4"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	args := rec.calls[0]
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f concat -safe 0 -i list.txt -c copy") || args[len(args)-1] != "out.mp4" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestExecRunnerKeepsStderrTail(t *testing.T) {
	script := "i=1; while [ $i -le 60 ]; do echo line$i >&2; i=$((i+1)); done; exit 3"
	err := ExecRunner(context.Background(), "sh", "-c", script)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if len(cmdErr.Tail) == 0 || len(cmdErr.Tail) > stderrTailLines {
		t.Fatalf("tail has %d lines, want 1..%d", len(cmdErr.Tail), stderrTailLines)
	}
	if !slices.Contains(cmdErr.Tail, "line60") {
		t.Fatalf("tail should hold the newest lines: %v", cmdErr.Tail)
	}
}
