package stream

import (
	"context"
	"fmt"
	"path/filepath"

	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/render"
	"aegis/internal/services"
	"aegis/internal/tracking"
)

// finalizeChunk turns a reconciled chunk into render edits and renders it.
func (o *Orchestrator) finalizeChunk(ctx context.Context, job finalizeJob) (FilteredChunk, error) {
	c := job.chunk
	ctx = services.WithModality(services.WithChunkID(ctx, c.ID), "finalize")
	req := o.buildRequest(job)

	if err := o.renderer.Render(ctx, req); err != nil {
		return FilteredChunk{}, err
	}
	muted := interval.Total(req.Mute)
	logging.WithContext(ctx, o.logger).Debug("chunk finalized",
		logging.Float64("muted_seconds", muted),
		logging.Int("blur_regions", len(req.Blur)),
		logging.Bool("passthrough", req.Noop()),
	)
	return FilteredChunk{
		ID:       c.ID,
		StartTS:  c.StartTS,
		Duration: c.Duration,
		Path:     req.Output,
		Muted:    muted,
		Blurred:  len(req.Blur),
	}, nil
}

// buildRequest clips both analyses to the chunk window and resolves blur
// regions in the chunk's native resolution.
func (o *Orchestrator) buildRequest(job finalizeJob) render.Request {
	c := job.chunk
	req := render.Request{
		Source:   c.Path,
		Output:   o.outputPath(c),
		Mute:     interval.Merge(interval.ClipToWindow(job.audio, c.StartTS, c.Duration), 0),
		HasVideo: c.HasVideo,
	}
	if !c.HasVideo {
		return req
	}
	unsafe := interval.Merge(interval.ClipToWindow(job.video.Intervals, c.StartTS, c.Duration), 0)
	if len(unsafe) == 0 {
		return req
	}

	width, height := c.Width, c.Height
	if width <= 0 || height <= 0 {
		width, height = job.video.Width, job.video.Height
	}
	fps := c.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}

	local := make([]tracking.Observation, 0, len(job.video.Observations))
	for _, obs := range job.video.Observations {
		local = append(local, tracking.Observation{Timestamp: obs.Timestamp - c.StartTS, Detections: obs.Detections})
	}
	tracker := tracking.Build(o.opts.Tracking, job.video.Width, job.video.Height, 1/o.opts.SampleFPS, local)
	var regions []tracking.BlurRegion
	for _, region := range tracker.Timeline(unsafe, fps) {
		region.Box = tracking.Clamp(
			tracking.Scale(region.Box, job.video.Width, job.video.Height, width, height),
			width, height,
		)
		if !region.Box.Empty() {
			regions = append(regions, region)
		}
	}
	if len(regions) == 0 && o.opts.FullFrameFallback {
		regions = tracking.FullFrame(unsafe, width, height)
	}
	req.Blur = regions
	return req
}

func (o *Orchestrator) outputPath(c Chunk) string {
	ext := filepath.Ext(c.Path)
	if ext == "" {
		ext = ".mp4"
	}
	dir := o.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(c.Path)
	}
	return filepath.Join(dir, fmt.Sprintf("chunk_%06d_filtered%s", c.ID, ext))
}
