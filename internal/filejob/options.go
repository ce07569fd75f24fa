package filejob

import (
	"aegis/internal/config"
	"aegis/internal/tracking"
)

// File mode samples between one and three frames per second.
const (
	minSampleFPS = 1.0
	maxSampleFPS = 3.0
)

// Options tune file jobs.
type Options struct {
	FrameWorkers      int
	ExtendBefore      float64
	ExtendAfter       float64
	VideoMergeGap     float64
	WorkDir           string
	Tracking          tracking.Config
	FullFrameFallback bool
}

// OptionsFromConfig maps the [file], [tracking] and [render] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FrameWorkers:      cfg.File.FrameWorkers,
		ExtendBefore:      cfg.File.ExtendBefore,
		ExtendAfter:       cfg.File.ExtendAfter,
		VideoMergeGap:     cfg.File.VideoMergeGap,
		WorkDir:           cfg.Paths.WorkDir,
		Tracking:          cfg.Tracking.TrackerConfig(),
		FullFrameFallback: cfg.Render.FullFrameFallback,
	}
}

// ClampSampleFPS bounds the file-mode sampling rate.
func ClampSampleFPS(fps float64) float64 {
	return min(maxSampleFPS, max(minSampleFPS, fps))
}

func (o Options) withDefaults() Options {
	if o.FrameWorkers <= 0 {
		o.FrameWorkers = 4
	}
	if o.Tracking == (tracking.Config{}) {
		o.Tracking = tracking.DefaultConfig()
	}
	return o
}
