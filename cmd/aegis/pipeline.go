package main

import (
	"log/slog"
	"path/filepath"

	"aegis/internal/analysis"
	"aegis/internal/config"
	"aegis/internal/deps"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/media/ffprobe"
	"aegis/internal/moderation"
	"aegis/internal/render"
	"aegis/internal/services/vision"
	"aegis/internal/services/whisperx"
)

// pipeline bundles the external tools and analyzers shared by the filter
// and stream commands.
type pipeline struct {
	tool     *ffmpeg.Tool
	prober   *ffprobe.Prober
	renderer *render.Renderer
	audio    *analysis.AudioAnalyzer
	video    *analysis.VideoAnalyzer
}

type pipelineOptions struct {
	// SampleFPS is the frame sampling rate for the video analyzer.
	SampleFPS float64
	// Streaming keeps a rolling transcript so severity accounts for words
	// spoken in earlier chunks.
	Streaming bool
	// WorkDir holds scratch audio and frames for this run.
	WorkDir string
}

func newPipeline(cfg *config.Config, opts pipelineOptions, logger *slog.Logger) *pipeline {
	tool := ffmpeg.New(cfg.Render.FFmpegBinary)
	probe := deps.ResolveFFprobe(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary)

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = cfg.Paths.WorkDir
	}

	transcriber := whisperx.NewService(whisperx.Config{
		Model:       cfg.WhisperX.Model,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		VADMethod:   cfg.WhisperX.VADMethod,
		HFToken:     cfg.WhisperX.HFToken,
		Language:    cfg.WhisperX.Language,
		WorkDir:     filepath.Join(workDir, "whisperx"),
	})
	classifier := vision.NewClient(vision.Config{
		URL:            cfg.Vision.URL,
		APIKey:         cfg.Vision.APIKey,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
		RetryAttempts:  cfg.Vision.RetryAttempts,
	})

	var buffer *moderation.TranscriptBuffer
	if opts.Streaming {
		buffer = moderation.NewTranscriptBuffer(cfg.Moderation.TranscriptWindowSeconds)
	}

	audio := analysis.NewAudioAnalyzer(transcriber, tool, analysis.AudioOptions{
		Rules: moderation.TextRules{
			Lexicon:       moderation.NewLexicon(cfg.Moderation.ExtraWords, cfg.Moderation.AllowWords),
			BlockSeverity: cfg.Moderation.BlockSeverity,
		},
		Segments: moderation.SegmentOptions{
			Padding: cfg.Moderation.WordPadding,
			MaxGap:  cfg.Moderation.WordMaxGap,
		},
		Buffer:  buffer,
		WorkDir: filepath.Join(workDir, "audio"),
	}, logger)

	video := analysis.NewVideoAnalyzer(classifier, tool, analysis.VideoOptions{
		Objects: moderation.ObjectRules{MinConfidence: cfg.Moderation.MinDetectionConfidence},
		FPS:     opts.SampleFPS,
		WorkDir: filepath.Join(workDir, "frames"),
	}, logger)

	renderer := render.New(tool, render.Options{
		VideoPreset:    cfg.Render.VideoPreset,
		AudioCodec:     cfg.Render.AudioCodec,
		BlurRadius:     cfg.Render.BlurRadius,
		PixelateFactor: cfg.Render.PixelateFactor,
	}, logger)

	return &pipeline{
		tool:     tool,
		prober:   ffprobe.NewProber(probe.Command),
		renderer: renderer,
		audio:    audio,
		video:    video,
	}
}
