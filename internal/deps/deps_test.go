package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"aegis/internal/config"
)

var stubScript = []byte("#!/bin/sh\nexit 0\n")

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, executableName(name))
	if err := os.WriteFile(path, stubScript, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for empty command: %#v", results[2])
	}
}

func TestResolveFFprobeSibling(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := writeStub(t, tmp, "ffmpeg")
	probePath := writeStub(t, tmp, "ffprobe")
	t.Setenv("PATH", "")

	status := ResolveFFprobe(ffmpegPath, "ffprobe")
	if !status.Available {
		t.Fatalf("expected sibling ffprobe, got detail %q", status.Detail)
	}
	if status.Command != probePath {
		t.Fatalf("expected %q, got %q", probePath, status.Command)
	}
}

func TestResolveFFprobePathFallback(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := writeStub(t, tmp, "ffmpeg")
	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	probePath := writeStub(t, binDir, "ffprobe")
	t.Setenv("PATH", binDir)

	status := ResolveFFprobe(ffmpegPath, "")
	if !status.Available || status.Command != probePath {
		t.Fatalf("expected PATH ffprobe %q, got %#v", probePath, status)
	}
}

func TestResolveFFprobeExplicitPath(t *testing.T) {
	tmp := t.TempDir()
	missing := filepath.Join(tmp, "nope", "ffprobe")
	status := ResolveFFprobe("ffmpeg", missing)
	if status.Available || status.Command != missing || status.Detail == "" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestResolveFFprobeNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := ResolveFFprobe("ffmpeg", "ffprobe")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected resolution failure, got %#v", status)
	}
}

func TestCheckMarksUVXOptionalWithoutAudio(t *testing.T) {
	t.Setenv("PATH", "")
	cfg := config.Default()

	statuses := Check(&cfg, false)
	if len(statuses) != 3 || statuses[1].Name != "FFprobe" {
		t.Fatalf("unexpected statuses %#v", statuses)
	}
	missing := Missing(statuses)
	for _, s := range missing {
		if s.Name == "uvx" {
			t.Fatal("uvx should be optional when audio filtering is off")
		}
	}
	if len(missing) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe missing, got %#v", missing)
	}

	if got := Missing(Check(&cfg, true)); len(got) != 3 {
		t.Fatalf("expected uvx required with audio filtering, got %#v", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
