package filejob

import (
	"context"
	"os"

	"aegis/internal/analysis"
	"aegis/internal/detect"
	"aegis/internal/logging"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/services"
	"aegis/internal/workerpool"
)

// analyzeVideo samples the input and classifies every frame on a worker
// pool. A frame whose classification fails counts as a pass.
func (o *Orchestrator) analyzeVideo(ctx context.Context, source string) (analysis.VideoResult, error) {
	ctx = services.WithModality(ctx, "video")
	frames, dir, err := o.deps.Video.Sample(ctx, source)
	if err != nil {
		return analysis.VideoResult{}, services.Wrap(services.ErrExternalTool, "filejob", "sample frames", "", err)
	}
	defer os.RemoveAll(dir)
	if len(frames) == 0 {
		return analysis.VideoResult{}, nil
	}

	logger := logging.WithContext(ctx, o.logger)
	pool := workerpool.New("frames", o.opts.FrameWorkers, len(frames),
		o.deps.Video.ClassifyFrame,
		logger,
		workerpool.WithContext[ffmpeg.Frame](ctx),
		workerpool.WithJobAttrs(func(f ffmpeg.Frame) []logging.Attr {
			return []logging.Attr{logging.Float64("frame_ts", f.Timestamp)}
		}),
	)
	for _, frame := range frames {
		if err := pool.Submit(frame); err != nil {
			pool.Close()
			return analysis.VideoResult{}, err
		}
	}
	pool.Close()

	verdicts := make([]detect.FrameVerdict, 0, len(frames))
	failed := 0
	progress := logging.NewProgressSampler(25)
	for res := range pool.Results() {
		verdict := res.Value
		if res.Failed() {
			failed++
			verdict = detect.FrameVerdict{Timestamp: res.Job.Timestamp}
		}
		verdicts = append(verdicts, verdict)
		if progress.ShouldLog(len(verdicts), len(frames), "classify") {
			logger.Info("classifying frames",
				logging.EventType("frame_progress"),
				logging.Int("done", len(verdicts)),
				logging.Int("total", len(frames)),
				logging.Float64("percent", logging.Percent(len(verdicts), len(frames))),
			)
		}
	}
	if err := ctx.Err(); err != nil {
		return analysis.VideoResult{}, err
	}

	result := o.deps.Video.Summarize(verdicts, 0)
	result.Failed = failed
	logger.Debug("frames classified",
		logging.Int("frames", len(frames)),
		logging.Int("failed", failed),
		logging.Int("unsafe_intervals", len(result.Intervals)),
	)
	return result, nil
}
