package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStream(); err != nil {
		return err
	}
	if err := c.validateFile(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateModeration(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStream() error {
	if err := ensurePositiveMap(map[string]int{
		"stream.audio_workers":     c.Stream.AudioWorkers,
		"stream.video_workers":     c.Stream.VideoWorkers,
		"stream.finalize_workers":  c.Stream.FinalizeWorkers,
		"stream.job_queue_size":    c.Stream.JobQueueSize,
		"stream.result_queue_size": c.Stream.ResultQueueSize,
		"stream.output_queue_size": c.Stream.OutputQueueSize,
		"stream.chunk_seconds":     c.Stream.ChunkSeconds,
		"stream.poll_interval_ms":  c.Stream.PollIntervalMS,
	}); err != nil {
		return err
	}
	if c.Stream.SampleFPS <= 0 {
		return errors.New("stream.sample_fps must be positive")
	}
	if c.Stream.JobTimeoutSeconds < 0 {
		return errors.New("stream.job_timeout_seconds must be zero (disabled) or positive")
	}
	return nil
}

func (c *Config) validateFile() error {
	if c.File.SampleFPS <= 0 {
		return errors.New("file.sample_fps must be positive")
	}
	if c.File.FrameWorkers <= 0 {
		return errors.New("file.frame_workers must be positive")
	}
	if c.File.ExtendBefore < 0 || c.File.ExtendAfter < 0 || c.File.VideoMergeGap < 0 {
		return errors.New("file.extend_before, file.extend_after and file.video_merge_gap must not be negative")
	}
	return nil
}

func (c *Config) validateTracking() error {
	t := c.Tracking
	if t.StaleAfterSeconds <= 0 {
		return errors.New("tracking.stale_after_seconds must be positive")
	}
	if t.PersistencePeriods < 0 {
		return errors.New("tracking.persistence_periods must not be negative")
	}
	for name, value := range map[string]float64{
		"tracking.min_iou":   t.MinIoU,
		"tracking.merge_iou": t.MergeIoU,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if t.ExpandRatio < 0 || t.ExpandMinPixels < 0 {
		return errors.New("tracking.expand_ratio and tracking.expand_min_pixels must not be negative")
	}
	return nil
}

func (c *Config) validateModeration() error {
	if c.Moderation.BlockSeverity < 1 || c.Moderation.BlockSeverity > 3 {
		return errors.New("moderation.block_severity must be between 1 and 3")
	}
	if c.Moderation.MinDetectionConfidence < 0 || c.Moderation.MinDetectionConfidence > 1 {
		return errors.New("moderation.min_detection_confidence must be between 0 and 1")
	}
	if c.Moderation.WordPadding < 0 || c.Moderation.WordMaxGap < 0 {
		return errors.New("moderation.word_padding and moderation.word_max_gap must not be negative")
	}
	if c.Moderation.TranscriptWindowSeconds <= 0 {
		return errors.New("moderation.transcript_window_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWhisperX() error {
	switch c.WhisperX.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("whisperx.vad_method must be silero or pyannote, got %q", c.WhisperX.VADMethod)
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.URL != "" {
		parsed, err := url.Parse(c.Vision.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("vision.url must be an absolute URL, got %q", c.Vision.URL)
		}
	}
	if c.Vision.TimeoutSeconds <= 0 {
		return errors.New("vision.timeout_seconds must be positive")
	}
	if c.Vision.RetryAttempts <= 0 {
		return errors.New("vision.retry_attempts must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.BlurRadius <= 0 {
		return errors.New("render.blur_radius must be positive")
	}
	if c.Render.PixelateFactor < 1 {
		return errors.New("render.pixelate_factor must be at least 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
