package analysis

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"aegis/internal/detect"
	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/moderation"
	"aegis/internal/tracking"
)

// FrameSampler writes sampled stills of a media file.
type FrameSampler interface {
	SampleFrames(ctx context.Context, source, dir string, fps float64) ([]ffmpeg.Frame, error)
}

// VideoResult is the outcome of analysing one video span. Timestamps are on
// the caller's timeline; boxes are in pixels of the sampled frames.
type VideoResult struct {
	Intervals    []interval.Interval
	Observations []tracking.Observation
	Width        int
	Height       int
	Frames       int
	Failed       int
}

// Unsafe reports whether any frame was blocked.
func (r VideoResult) Unsafe() bool { return len(r.Intervals) > 0 }

// VideoOptions tune VideoAnalyzer.
type VideoOptions struct {
	Objects moderation.ObjectRules
	FPS     float64
	WorkDir string
}

// VideoAnalyzer samples and classifies frames.
type VideoAnalyzer struct {
	detector detect.VideoDetector
	sampler  FrameSampler
	opts     VideoOptions
	logger   *slog.Logger
}

// NewVideoAnalyzer wires an analyzer.
func NewVideoAnalyzer(detector detect.VideoDetector, sampler FrameSampler, opts VideoOptions, logger *slog.Logger) *VideoAnalyzer {
	if opts.FPS <= 0 {
		opts.FPS = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &VideoAnalyzer{
		detector: detector,
		sampler:  sampler,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "video-analysis"),
	}
}

// FPS returns the sampling rate.
func (v *VideoAnalyzer) FPS() float64 { return v.opts.FPS }

// Sample writes frames of source into a fresh directory under WorkDir. The
// caller removes the returned directory.
func (v *VideoAnalyzer) Sample(ctx context.Context, source string) ([]ffmpeg.Frame, string, error) {
	dir, err := os.MkdirTemp(v.opts.WorkDir, "frames-")
	if err != nil {
		return nil, "", fmt.Errorf("video analysis: temp dir: %w", err)
	}
	frames, err := v.sampler.SampleFrames(ctx, source, dir, v.opts.FPS)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, "", err
	}
	return frames, dir, nil
}

// ClassifyFrame classifies one still. The verdict timestamp is the frame's
// source-local timestamp.
func (v *VideoAnalyzer) ClassifyFrame(ctx context.Context, frame ffmpeg.Frame) (detect.FrameVerdict, error) {
	verdict, err := v.detector.Classify(ctx, frame.Path)
	if err != nil {
		return detect.FrameVerdict{Timestamp: frame.Timestamp}, err
	}
	verdict.Timestamp = frame.Timestamp
	return verdict, nil
}

// AnalyzeMedia samples source and classifies every frame in order. A frame
// whose classification fails counts as a pass.
func (v *VideoAnalyzer) AnalyzeMedia(ctx context.Context, source string, offset float64) (VideoResult, error) {
	frames, dir, err := v.Sample(ctx, source)
	if err != nil {
		return VideoResult{}, err
	}
	defer os.RemoveAll(dir)

	logger := logging.WithContext(ctx, v.logger)
	verdicts := make([]detect.FrameVerdict, 0, len(frames))
	failed := 0
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return VideoResult{}, err
		}
		verdict, err := v.ClassifyFrame(ctx, frame)
		if err != nil {
			failed++
			logging.WarnWithContext(logger, "frame classification failed; treating as pass", "detector_failed",
				logging.Float64("frame_ts", frame.Timestamp),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the vision service"),
			)
		}
		verdicts = append(verdicts, verdict)
	}
	res := v.Summarize(verdicts, offset)
	res.Failed = failed
	return res, nil
}

// Summarize converts per-frame verdicts into unsafe intervals and tracker
// observations on the caller's timeline.
func (v *VideoAnalyzer) Summarize(verdicts []detect.FrameVerdict, offset float64) VideoResult {
	step := 1 / v.opts.FPS
	res := VideoResult{Frames: len(verdicts)}
	samples := make([]interval.Sample, 0, len(verdicts))
	for _, vd := range verdicts {
		ts := offset + vd.Timestamp
		samples = append(samples, interval.Sample{Timestamp: ts, Blocked: vd.Blocked})
		if res.Width == 0 && vd.Width > 0 && vd.Height > 0 {
			res.Width, res.Height = vd.Width, vd.Height
		}
		if selected := v.opts.Objects.Select(vd.Objects, vd.Blocked); len(selected) > 0 {
			res.Observations = append(res.Observations, tracking.Observation{Timestamp: ts, Detections: selected})
		}
	}
	slices.SortStableFunc(samples, func(a, b interval.Sample) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	res.Intervals = interval.FromSamples(samples, step)
	return res
}
