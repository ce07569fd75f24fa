package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "mjpeg", Width: 300, Height: 300, AvgFrameRate: "0/0"},
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if result.VideoStreamCount() != 2 {
		t.Fatalf("expected 2 video streams, got %d", result.VideoStreamCount())
	}
	if !result.HasAudio() || !result.HasVideo() {
		t.Fatal("expected audio and video")
	}
	video, ok := result.PrimaryVideo()
	if !ok || video.CodecName != "h264" {
		t.Fatalf("primary video = %+v, want h264 (cover art skipped)", video)
	}
	if rate := video.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("frame rate = %v", rate)
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{Duration: "4.5"}, {Duration: "bad"}, {Duration: "9.25"}},
		Format:  Format{Duration: "N/A"},
	}
	if got := result.DurationSeconds(); got != 9.25 {
		t.Fatalf("duration = %v, want 9.25", got)
	}
}

func TestParseRational(t *testing.T) {
	tests := map[string]float64{"25/1": 25, "0/0": 0, "": 0, "24": 24, "x/y": 0}
	for in, want := range tests {
		if got := parseRational(in); got != want {
			t.Errorf("parseRational(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestProberInspectUsesRunner(t *testing.T) {
	var gotArgs []string
	p := NewProber("").WithRunner(func(_ context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("binary = %q", binary)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"audio","channels":2}],"format":{"duration":"10.0"}}`), nil
	})
	res, err := p.Inspect(context.Background(), "/media/in.wav")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !res.HasAudio() || res.HasVideo() || res.DurationSeconds() != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotArgs[len(gotArgs)-1] != "/media/in.wav" {
		t.Fatalf("path not last arg: %v", gotArgs)
	}
}

func TestProberInspectErrors(t *testing.T) {
	p := NewProber("ffprobe").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	if _, err := p.Inspect(context.Background(), "x"); err == nil {
		t.Fatal("expected runner error")
	}
	if _, err := p.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}
