package stream

import (
	"time"

	"aegis/internal/config"
	"aegis/internal/tracking"
)

// Options size the orchestrator.
type Options struct {
	AudioWorkers      int
	VideoWorkers      int
	FinalizeWorkers   int
	JobQueueSize      int
	ResultQueueSize   int
	OutputQueueSize   int
	SampleFPS         float64
	PollInterval      time.Duration
	JobTimeout        time.Duration
	OutputDir         string
	Tracking          tracking.Config
	FullFrameFallback bool
}

// defaultFrameRate is assumed for chunks whose frame rate is unknown.
const defaultFrameRate = 25.0

// OptionsFromConfig maps the [stream], [tracking] and [render] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AudioWorkers:      cfg.Stream.AudioWorkers,
		VideoWorkers:      cfg.Stream.VideoWorkers,
		FinalizeWorkers:   cfg.Stream.FinalizeWorkers,
		JobQueueSize:      cfg.Stream.JobQueueSize,
		ResultQueueSize:   cfg.Stream.ResultQueueSize,
		OutputQueueSize:   cfg.Stream.OutputQueueSize,
		SampleFPS:         cfg.Stream.SampleFPS,
		PollInterval:      time.Duration(cfg.Stream.PollIntervalMS) * time.Millisecond,
		JobTimeout:        time.Duration(cfg.Stream.JobTimeoutSeconds) * time.Second,
		OutputDir:         cfg.Paths.OutputDir,
		Tracking:          cfg.Tracking.TrackerConfig(),
		FullFrameFallback: cfg.Render.FullFrameFallback,
	}
}

func (o Options) withDefaults() Options {
	if o.AudioWorkers <= 0 {
		o.AudioWorkers = 1
	}
	if o.VideoWorkers <= 0 {
		o.VideoWorkers = 1
	}
	if o.FinalizeWorkers <= 0 {
		o.FinalizeWorkers = 1
	}
	if o.JobQueueSize <= 0 {
		o.JobQueueSize = 64
	}
	if o.ResultQueueSize <= 0 {
		o.ResultQueueSize = o.JobQueueSize
	}
	if o.OutputQueueSize <= 0 {
		o.OutputQueueSize = o.JobQueueSize
	}
	if o.SampleFPS <= 0 {
		o.SampleFPS = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.Tracking == (tracking.Config{}) {
		o.Tracking = tracking.DefaultConfig()
	}
	return o
}
