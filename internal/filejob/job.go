package filejob

import (
	"strings"
	"time"

	"aegis/internal/interval"
	"aegis/internal/services"
)

// MediaType names the kind of input a job carries.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// ParseMediaType accepts "audio" or "video" in any case.
func ParseMediaType(value string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(value))) {
	case MediaAudio:
		return MediaAudio, nil
	case MediaVideo:
		return MediaVideo, nil
	default:
		return "", services.Wrap(services.ErrValidation, "filejob", "media type", "unsupported media type "+value, nil)
	}
}

// Job is one whole-file censoring request.
type Job struct {
	ID          string
	Input       string
	Output      string
	MediaType   MediaType
	FilterAudio bool
	FilterVideo bool
}

// Validate enforces the job combinations that make sense.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Input) == "" {
		return services.Wrap(services.ErrValidation, "filejob", "validate", "input path required", nil)
	}
	if strings.TrimSpace(j.Output) == "" {
		return services.Wrap(services.ErrValidation, "filejob", "validate", "output path required", nil)
	}
	switch j.MediaType {
	case MediaAudio:
		if j.FilterVideo {
			return services.Wrap(services.ErrValidation, "filejob", "validate", "audio media cannot filter video", nil)
		}
		if !j.FilterAudio {
			return services.Wrap(services.ErrValidation, "filejob", "validate", "audio media requires audio filtering", nil)
		}
	case MediaVideo:
		if !j.FilterAudio && !j.FilterVideo {
			return services.Wrap(services.ErrValidation, "filejob", "validate", "enable audio or video filtering", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "filejob", "validate", "unsupported media type "+string(j.MediaType), nil)
	}
	return nil
}

// Outcome reports what a job did.
type Outcome struct {
	JobID  string
	Output string
	// AudioIntervals and VideoIntervals are nil for modalities the job did
	// not filter.
	AudioIntervals []interval.Interval
	VideoIntervals []interval.Interval
	BlurRegions    int
	// Copied is set when nothing was unsafe and the input was copied
	// verbatim.
	Copied       bool
	Frames       int
	FailedFrames int
	Elapsed      time.Duration
}

// MutedSeconds is the total muted duration.
func (o Outcome) MutedSeconds() float64 { return interval.Total(o.AudioIntervals) }
