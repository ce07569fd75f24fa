package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"aegis/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("AEGIS_VISION_URL", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "aegis", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "aegis", "state", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Stream.AudioWorkers != 12 || cfg.Stream.VideoWorkers != 20 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Stream)
	}
	if cfg.Stream.JobTimeoutSeconds != 0 {
		t.Fatalf("expected detector timeout disabled by default, got %d", cfg.Stream.JobTimeoutSeconds)
	}
	if cfg.Tracking.StaleAfterSeconds != 2 || cfg.Tracking.MatchThreshold != 0.3 || cfg.Tracking.PersistencePeriods != 3 {
		t.Fatalf("unexpected tracking defaults: %+v", cfg.Tracking)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "aegis.toml")

	type payload struct {
		Stream struct {
			AudioWorkers int     `toml:"audio_workers"`
			SampleFPS    float64 `toml:"sample_fps"`
		} `toml:"stream"`
		Moderation struct {
			ExtraWords []string `toml:"extra_words"`
		} `toml:"moderation"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Stream.AudioWorkers = 3
	custom.Stream.SampleFPS = 2.5
	custom.Moderation.ExtraWords = []string{" Heck ", "heck", "darn"}
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Stream.AudioWorkers != 3 {
		t.Fatalf("expected audio workers 3, got %d", cfg.Stream.AudioWorkers)
	}
	if cfg.Stream.VideoWorkers != config.Default().Stream.VideoWorkers {
		t.Fatalf("expected untouched video workers default, got %d", cfg.Stream.VideoWorkers)
	}
	if cfg.Stream.SampleFPS != 2.5 {
		t.Fatalf("expected sample fps 2.5, got %v", cfg.Stream.SampleFPS)
	}
	if got := strings.Join(cfg.Moderation.ExtraWords, ","); got != "heck,darn" {
		t.Fatalf("expected normalized extra words, got %q", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesVisionSettings(t *testing.T) {
	t.Setenv("AEGIS_VISION_URL", "http://127.0.0.1:9000/classify")
	t.Setenv("AEGIS_VISION_API_KEY", "env-key")
	t.Setenv("HOME", t.TempDir())

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Vision.URL != "http://127.0.0.1:9000/classify" {
		t.Fatalf("unexpected vision url: %q", cfg.Vision.URL)
	}
	if cfg.Vision.APIKey != "env-key" {
		t.Fatalf("unexpected vision key: %q", cfg.Vision.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "zero audio workers",
			mutate: func(c *config.Config) { c.Stream.AudioWorkers = 0 },
			want:   "stream.audio_workers must be positive",
		},
		{
			name:   "negative timeout",
			mutate: func(c *config.Config) { c.Stream.JobTimeoutSeconds = -1 },
			want:   "stream.job_timeout_seconds",
		},
		{
			name:   "merge iou out of range",
			mutate: func(c *config.Config) { c.Tracking.MergeIoU = 1.5 },
			want:   "tracking.merge_iou must be between 0 and 1",
		},
		{
			name:   "unknown vad",
			mutate: func(c *config.Config) { c.WhisperX.VADMethod = "webrtc" },
			want:   "whisperx.vad_method",
		},
		{
			name:   "relative vision url",
			mutate: func(c *config.Config) { c.Vision.URL = "classify" },
			want:   "vision.url must be an absolute URL",
		},
		{
			name:   "block severity",
			mutate: func(c *config.Config) { c.Moderation.BlockSeverity = 4 },
			want:   "moderation.block_severity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AEGIS_VISION_URL", "")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.WhisperX.Language != "en" {
		t.Fatalf("expected sample language en, got %q", cfg.WhisperX.Language)
	}
}
