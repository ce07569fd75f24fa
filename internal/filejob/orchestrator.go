package filejob

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"aegis/internal/analysis"
	"aegis/internal/detect"
	"aegis/internal/fileutil"
	"aegis/internal/history"
	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/media/ffprobe"
	"aegis/internal/render"
	"aegis/internal/services"
	"aegis/internal/tracking"
)

// defaultFrameRate is assumed when the probe reports none.
const defaultFrameRate = 25.0

// Prober inspects media.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// AudioAnalyzer transcribes an extracted WAV into mute intervals.
type AudioAnalyzer interface {
	Analyze(ctx context.Context, audioPath string, offset, duration float64) (analysis.AudioResult, error)
}

// VideoAnalyzer samples frames and classifies them one at a time.
type VideoAnalyzer interface {
	FPS() float64
	Sample(ctx context.Context, source string) ([]ffmpeg.Frame, string, error)
	ClassifyFrame(ctx context.Context, frame ffmpeg.Frame) (detect.FrameVerdict, error)
	Summarize(verdicts []detect.FrameVerdict, offset float64) analysis.VideoResult
}

// Renderer writes censored media.
type Renderer interface {
	Render(ctx context.Context, req render.Request) error
}

// Recorder journals job outcomes.
type Recorder interface {
	RecordJob(ctx context.Context, rec history.JobRecord) error
}

// Deps are the collaborators a file job needs. History is optional.
type Deps struct {
	Prober    Prober
	Extractor analysis.AudioExtractor
	Audio     AudioAnalyzer
	Video     VideoAnalyzer
	Renderer  Renderer
	History   Recorder
}

// Orchestrator runs whole-file censoring jobs.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New builds an orchestrator.
func New(deps Deps, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "filejob"),
	}
}

// Run validates job, analyses the requested modalities concurrently and
// either copies the input verbatim (nothing unsafe) or renders the censored
// output. Detector failures pass content through; probe, extraction and
// render failures are returned.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Outcome, error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx = services.WithRequestID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldJobID, job.ID))

	rec := history.JobRecord{
		ID:        job.ID,
		Kind:      history.KindFile,
		Input:     job.Input,
		Output:    job.Output,
		Status:    history.JobRunning,
		StartedAt: start,
	}
	o.record(ctx, logger, rec)

	outcome, err := o.run(ctx, logger, job)
	outcome.JobID = job.ID
	outcome.Elapsed = time.Since(start)

	rec.FinishedAt = time.Now()
	if err != nil {
		rec.Status = services.FailureOutcome(err)
		rec.Error = err.Error()
		o.record(ctx, logger, rec)
		return outcome, err
	}
	rec.Status = history.JobCompleted
	if outcome.Copied {
		rec.Status = history.JobCopied
	}
	rec.MutedSeconds = outcome.MutedSeconds()
	rec.BlurRegions = outcome.BlurRegions
	o.record(ctx, logger, rec)

	logger.Info("file job complete",
		logging.EventType("filejob_complete"),
		logging.String("output", outcome.Output),
		logging.Bool("copied", outcome.Copied),
		logging.Float64("muted_seconds", outcome.MutedSeconds()),
		logging.Int("video_intervals", len(outcome.VideoIntervals)),
		logging.Int("blur_regions", outcome.BlurRegions),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, job Job) (Outcome, error) {
	out := Outcome{Output: job.Output}
	if err := job.Validate(); err != nil {
		return out, err
	}
	info, err := os.Stat(job.Input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, services.Wrap(services.ErrNotFound, "filejob", "stat input", job.Input, err)
		}
		return out, services.Wrap(services.ErrValidation, "filejob", "stat input", job.Input, err)
	}
	if info.IsDir() {
		return out, services.Wrap(services.ErrValidation, "filejob", "stat input", "input is a directory", nil)
	}
	if same, err := fileutil.SameFile(job.Input, job.Output); err == nil && same {
		return out, services.Wrap(services.ErrValidation, "filejob", "validate", "output would overwrite input", nil)
	}

	probe, err := o.deps.Prober.Inspect(ctx, job.Input)
	if err != nil {
		return out, services.Wrap(services.ErrExternalTool, "filejob", "probe", filepath.Base(job.Input), err)
	}
	hasVideo := job.MediaType == MediaVideo && probe.HasVideo()
	if job.MediaType == MediaVideo && !hasVideo {
		return out, services.Wrap(services.ErrValidation, "filejob", "probe", "input has no video stream", nil)
	}
	duration := probe.DurationSeconds()
	logger.Info("file job started",
		logging.EventType("filejob_started"),
		logging.String("input", job.Input),
		logging.String("media_type", string(job.MediaType)),
		logging.Bool("filter_audio", job.FilterAudio),
		logging.Bool("filter_video", job.FilterVideo),
		logging.Float64("duration_seconds", duration),
		logging.Int64("size_bytes", probe.SizeBytes()),
	)

	var (
		audioIntervals []interval.Interval
		video          analysis.VideoResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if job.FilterAudio {
		g.Go(func() error {
			var err error
			audioIntervals, err = o.analyzeAudio(gctx, job.Input, probe.HasAudio(), duration)
			return err
		})
	}
	if job.FilterVideo {
		g.Go(func() error {
			var err error
			video, err = o.analyzeVideo(gctx, job.Input)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	if job.FilterAudio {
		out.AudioIntervals = interval.Merge(interval.Extend(audioIntervals, o.opts.ExtendBefore, o.opts.ExtendAfter), 0)
		if out.AudioIntervals == nil {
			out.AudioIntervals = []interval.Interval{}
		}
	}
	var blur []tracking.BlurRegion
	if job.FilterVideo {
		out.Frames, out.FailedFrames = video.Frames, video.Failed
		out.VideoIntervals = interval.Merge(interval.Extend(video.Intervals, o.opts.ExtendBefore, o.opts.ExtendAfter), o.opts.VideoMergeGap)
		if out.VideoIntervals == nil {
			out.VideoIntervals = []interval.Interval{}
		}
		blur = o.blurRegions(out.VideoIntervals, video, probe)
		out.BlurRegions = len(blur)
	}

	if len(out.AudioIntervals) == 0 && len(out.VideoIntervals) == 0 {
		if _, err := fileutil.CopyVerified(job.Input, job.Output); err != nil {
			return out, services.Wrap(services.ErrExternalTool, "filejob", "copy", "verbatim copy", err)
		}
		out.Copied = true
		return out, nil
	}

	req := render.Request{
		Source:   job.Input,
		Output:   job.Output,
		Mute:     out.AudioIntervals,
		Blur:     blur,
		HasVideo: hasVideo,
	}
	if err := o.deps.Renderer.Render(ctx, req); err != nil {
		return out, err
	}
	return out, nil
}

// analyzeAudio extracts speech audio and transcribes it. Extraction errors
// are returned; a failed transcription passes the audio through.
func (o *Orchestrator) analyzeAudio(ctx context.Context, source string, hasAudio bool, duration float64) ([]interval.Interval, error) {
	ctx = services.WithModality(ctx, "audio")
	dir, err := os.MkdirTemp(o.opts.WorkDir, "aegis-audio-")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "filejob", "audio", "create work dir", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".wav")
	if err := o.deps.Extractor.ExtractAudio(ctx, source, wav, hasAudio, duration); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "filejob", "extract audio", filepath.Base(source), err)
	}
	res, err := o.deps.Audio.Analyze(ctx, wav, 0, duration)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "transcription failed; audio passes unfiltered", "detector_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the whisperx install"),
			logging.String(logging.FieldImpact, "no audio is muted"),
		)
		return nil, nil
	}
	return res.Intervals, nil
}

// blurRegions tracks the selected objects across the unsafe intervals and
// returns regions in the source resolution.
func (o *Orchestrator) blurRegions(unsafe []interval.Interval, video analysis.VideoResult, probe ffprobe.Result) []tracking.BlurRegion {
	if len(unsafe) == 0 {
		return nil
	}
	width, height := video.Width, video.Height
	fps := defaultFrameRate
	if stream, ok := probe.PrimaryVideo(); ok {
		if stream.Width > 0 && stream.Height > 0 {
			width, height = stream.Width, stream.Height
		}
		if rate := stream.FrameRate(); rate > 0 {
			fps = rate
		}
	}

	tracker := tracking.Build(o.opts.Tracking, video.Width, video.Height, 1/o.deps.Video.FPS(), video.Observations)
	var regions []tracking.BlurRegion
	for _, region := range tracker.Timeline(unsafe, fps) {
		region.Box = tracking.Clamp(tracking.Scale(region.Box, video.Width, video.Height, width, height), width, height)
		if !region.Box.Empty() {
			regions = append(regions, region)
		}
	}
	if len(regions) == 0 && o.opts.FullFrameFallback {
		regions = tracking.FullFrame(unsafe, width, height)
	}
	return regions
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, rec history.JobRecord) {
	if o.deps.History == nil {
		return
	}
	if err := o.deps.History.RecordJob(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("history record failed", logging.Error(err))
	}
}
