package stream

import (
	"context"
	"errors"

	"aegis/internal/analysis"
	"aegis/internal/history"
	"aegis/internal/interval"
	"aegis/internal/render"
)

var (
	// ErrClosed rejects submissions after Close.
	ErrClosed = errors.New("stream orchestrator closed")
	// ErrDuplicateChunk rejects a chunk id that was already submitted.
	ErrDuplicateChunk = errors.New("duplicate chunk id")
)

// Chunk describes one unit of input media. StartTS places it on the
// absolute stream timeline. Width, Height and FrameRate describe the
// source video and are zero for audio-only chunks.
type Chunk struct {
	ID        int64
	StartTS   float64
	Duration  float64
	Path      string
	HasAudio  bool
	HasVideo  bool
	Width     int
	Height    int
	FrameRate float64
}

// End returns the absolute end of the chunk.
func (c Chunk) End() float64 { return c.StartTS + c.Duration }

// FilteredChunk is one rendered output segment.
type FilteredChunk struct {
	ID       int64
	StartTS  float64
	Duration float64
	Path     string
	Muted    float64
	Blurred  int
}

// AudioProcessor analyses a chunk's audio and returns absolute mute
// intervals.
type AudioProcessor interface {
	ProcessAudio(ctx context.Context, chunk Chunk) ([]interval.Interval, error)
}

// VideoProcessor analyses a chunk's video on the absolute timeline.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, chunk Chunk) (analysis.VideoResult, error)
}

// Renderer writes censored media.
type Renderer interface {
	Render(ctx context.Context, req render.Request) error
}

// Journal records chunk outcomes.
type Journal interface {
	RecordChunk(ctx context.Context, rec history.ChunkRecord) error
}

// AudioFunc adapts a function to AudioProcessor.
type AudioFunc func(ctx context.Context, chunk Chunk) ([]interval.Interval, error)

func (f AudioFunc) ProcessAudio(ctx context.Context, chunk Chunk) ([]interval.Interval, error) {
	return f(ctx, chunk)
}

// VideoFunc adapts a function to VideoProcessor.
type VideoFunc func(ctx context.Context, chunk Chunk) (analysis.VideoResult, error)

func (f VideoFunc) ProcessVideo(ctx context.Context, chunk Chunk) (analysis.VideoResult, error) {
	return f(ctx, chunk)
}

// AnalyzerProcessors adapts the media analyzers to the chunk contracts.
type AnalyzerProcessors struct {
	Audio *analysis.AudioAnalyzer
	Video *analysis.VideoAnalyzer
}

// ProcessAudio extracts and transcribes the chunk's audio.
func (p AnalyzerProcessors) ProcessAudio(ctx context.Context, chunk Chunk) ([]interval.Interval, error) {
	res, err := p.Audio.AnalyzeMedia(ctx, chunk.Path, chunk.HasAudio, chunk.StartTS, chunk.Duration)
	if err != nil {
		return nil, err
	}
	return res.Intervals, nil
}

// ProcessVideo samples and classifies the chunk's frames. Audio-only chunks
// yield an empty result.
func (p AnalyzerProcessors) ProcessVideo(ctx context.Context, chunk Chunk) (analysis.VideoResult, error) {
	if !chunk.HasVideo {
		return analysis.VideoResult{}, nil
	}
	return p.Video.AnalyzeMedia(ctx, chunk.Path, chunk.StartTS)
}
