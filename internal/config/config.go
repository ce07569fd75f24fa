package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Stream contains live chunk pipeline settings.
type Stream struct {
	AudioWorkers      int     `toml:"audio_workers"`
	VideoWorkers      int     `toml:"video_workers"`
	FinalizeWorkers   int     `toml:"finalize_workers"`
	JobQueueSize      int     `toml:"job_queue_size"`
	ResultQueueSize   int     `toml:"result_queue_size"`
	OutputQueueSize   int     `toml:"output_queue_size"`
	SampleFPS         float64 `toml:"sample_fps"`
	ChunkSeconds      int     `toml:"chunk_seconds"`
	PollIntervalMS    int     `toml:"poll_interval_ms"`
	JobTimeoutSeconds int     `toml:"job_timeout_seconds"`
}

// File contains whole-file job settings.
type File struct {
	SampleFPS     float64 `toml:"sample_fps"`
	FrameWorkers  int     `toml:"frame_workers"`
	ExtendBefore  float64 `toml:"extend_before"`
	ExtendAfter   float64 `toml:"extend_after"`
	VideoMergeGap float64 `toml:"video_merge_gap"`
}

// Tracking contains the region tracker tuning knobs. The defaults are
// empirical; change them only against labelled footage.
type Tracking struct {
	StaleAfterSeconds  float64 `toml:"stale_after_seconds"`
	MatchThreshold     float64 `toml:"match_threshold"`
	LabelBonus         float64 `toml:"label_bonus"`
	CenterWeight       float64 `toml:"center_weight"`
	MinIoU             float64 `toml:"min_iou"`
	MaxCenterDistance  float64 `toml:"max_center_distance"`
	PersistencePeriods float64 `toml:"persistence_periods"`
	MergeIoU           float64 `toml:"merge_iou"`
	ExpandRatio        float64 `toml:"expand_ratio"`
	ExpandMinPixels    int     `toml:"expand_min_pixels"`
}

// Moderation contains transcript and object decision settings.
type Moderation struct {
	ExtraWords              []string `toml:"extra_words"`
	AllowWords              []string `toml:"allow_words"`
	BlockSeverity           int      `toml:"block_severity"`
	WordPadding             float64  `toml:"word_padding"`
	WordMaxGap              float64  `toml:"word_max_gap"`
	MinDetectionConfidence  float64  `toml:"min_detection_confidence"`
	TranscriptWindowSeconds float64  `toml:"transcript_window_seconds"`
}

// WhisperX contains the transcription CLI settings.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Language    string `toml:"language"`
}

// Vision contains the frame classification endpoint settings.
type Vision struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Render contains ffmpeg composition settings.
type Render struct {
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	VideoPreset       string `toml:"video_preset"`
	AudioCodec        string `toml:"audio_codec"`
	BlurRadius        int    `toml:"blur_radius"`
	PixelateFactor    int    `toml:"pixelate_factor"`
	FullFrameFallback bool   `toml:"full_frame_fallback"`
}

// History contains run journal settings.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for aegis.
//
// Configuration sections by subsystem:
//   - Paths: work, output, log, and state directories
//   - Logging: log format and level
//   - Stream: worker pool sizes and queue bounds for live chunks
//   - File: sampling and interval padding for whole-file jobs
//   - Tracking: region tracker thresholds
//   - Moderation: word list overrides and decision thresholds
//   - WhisperX: transcription CLI
//   - Vision: frame classification endpoint
//   - Render: ffmpeg binaries and blur strength
//   - History: SQLite run journal
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Stream     Stream     `toml:"stream"`
	File       File       `toml:"file"`
	Tracking   Tracking   `toml:"tracking"`
	Moderation Moderation `toml:"moderation"`
	WhisperX   WhisperX   `toml:"whisperx"`
	Vision     Vision     `toml:"vision"`
	Render     Render     `toml:"render"`
	History    History    `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aegis/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aegis.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work, output, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the journal database location.
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.History.Path) != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
