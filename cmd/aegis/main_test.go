package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"aegis/internal/config"
	"aegis/internal/filejob"
	"aegis/internal/history"
	"aegis/internal/services"
	"aegis/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("AEGIS_VISION_URL", "")
	t.Setenv("AEGIS_VISION_API_KEY", "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Vision.APIKey = "super-secret"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Fatalf("api key leaked: %s", out)
	}
	requireContains(t, out, "[stream]")
	requireContains(t, out, env.cfg.Paths.OutputDir)
}

func TestHistoryListsRunsNewestFirst(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenHistory(t, env.cfg)
	now := time.Now()
	testsupport.RecordFileJob(t, store, "aaaaaaaa-older", history.JobCompleted, now.Add(-2*time.Hour))
	testsupport.RecordFileJob(t, store, "bbbbbbbb-newer", history.JobCopied, now.Add(-time.Minute))

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	newer := strings.Index(out, "bbbbbbbb")
	older := strings.Index(out, "aaaaaaaa")
	if newer < 0 || older < 0 || newer > older {
		t.Fatalf("expected newest run first:\n%s", out)
	}
	requireContains(t, out, "copied")
	requireContains(t, out, "ago")

	out, _, err = runCLI(t, []string{"history", "--json", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	requireContains(t, out, "bbbbbbbb-newer")
	if strings.Contains(out, "aaaaaaaa-older") {
		t.Fatalf("limit not applied: %s", out)
	}
}

func TestHistoryShowListsStreamChunks(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenHistory(t, env.cfg)
	ctx := context.Background()
	job := history.JobRecord{
		ID:        "cafef00d-session",
		Kind:      history.KindStream,
		Input:     "/media/live.mp4",
		Status:    history.JobCompleted,
		StartedAt: time.Now(),
	}
	if err := store.RecordJob(ctx, job); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	chunks := []history.ChunkRecord{
		{JobID: job.ID, ChunkID: 0, StartTS: 0, Duration: 2, Status: history.ChunkEmitted, MutedSeconds: 0.5},
		{JobID: job.ID, ChunkID: 1, StartTS: 2, Duration: 2, Status: history.ChunkDropped, Error: "stream ended mid-chunk"},
	}
	for _, c := range chunks {
		if err := store.RecordChunk(ctx, c); err != nil {
			t.Fatalf("RecordChunk: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"history", "show", "cafef00d"}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "emitted")
	requireContains(t, out, "dropped")
	requireContains(t, out, "stream ended mid-chunk")

	if _, _, err := runCLI(t, []string{"history", "show", "nope"}, env.configPath); err == nil {
		t.Fatal("expected unknown id to fail")
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutHistory())
	_, _, err := runCLI(t, []string{"history"}, env.configPath)
	if !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("expected errHistoryDisabled, got %v", err)
	}
}

func TestDepsReportsMissingBinaries(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("ffprobe", "uvx"))
	env.cfg.Render.FFmpegBinary = filepath.Join(testsupport.BaseDir(env.cfg), "missing", "ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"deps", "--skip-vision"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing ffmpeg to fail")
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "MISSING")
	requireContains(t, out, "Output directory")
}

func TestDepsAllAvailable(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"deps", "--skip-vision"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v\n%s", err, out)
	}
	requireContains(t, out, "All dependencies available")
}

func TestFilterRejectsVideoFilterOnAudio(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	input := filepath.Join(testsupport.BaseDir(env.cfg), "media", "song.mp3")
	testsupport.WriteFile(t, input, 1024)

	_, _, err := runCLI(t, []string{"filter", input, "--video"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildFilterJobDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tests := []struct {
		name      string
		input     string
		media     string
		wantMedia filejob.MediaType
		wantVideo bool
	}{
		{name: "video by extension", input: "/in/clip.mp4", wantMedia: filejob.MediaVideo, wantVideo: true},
		{name: "audio by extension", input: "/in/song.FLAC", wantMedia: filejob.MediaAudio, wantVideo: false},
		{name: "explicit media wins", input: "/in/podcast.mp4", media: "audio", wantMedia: filejob.MediaAudio, wantVideo: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job, err := buildFilterJob(cfg, tc.input, "", tc.media, false, true, false, true)
			if err != nil {
				t.Fatalf("buildFilterJob: %v", err)
			}
			if job.MediaType != tc.wantMedia {
				t.Fatalf("media = %q, want %q", job.MediaType, tc.wantMedia)
			}
			if !job.FilterAudio || job.FilterVideo != tc.wantVideo {
				t.Fatalf("filters = audio %v video %v", job.FilterAudio, job.FilterVideo)
			}
			if filepath.Dir(job.Output) != cfg.Paths.OutputDir || !strings.Contains(filepath.Base(job.Output), "_filtered") {
				t.Fatalf("unexpected default output %q", job.Output)
			}
			if err := job.Validate(); err != nil {
				t.Fatalf("default job invalid: %v", err)
			}
		})
	}
}

func TestLockOutputIsExclusive(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out", "clip.mp4")
	first, err := lockOutput(output)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := lockOutput(output); err == nil {
		t.Fatal("expected second lock to fail")
	}
	releaseOutput(first)
	second, err := lockOutput(output)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	releaseOutput(second)
}
