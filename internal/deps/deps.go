package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"aegis/internal/config"
	"aegis/internal/services/whisperx"
)

// Requirement defines an external binary aegis relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline executes. uvx is
// only required when audio filtering is in play.
func Requirements(cfg *config.Config, filterAudio bool) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Render.FFmpegBinary, Description: "Audio extraction, frame sampling and rendering"},
		{Name: "uvx", Command: whisperx.UVXCommand, Description: "Runs WhisperX transcription", Optional: !filterAudio},
	}
}

// Check resolves every requirement plus ffprobe, which is looked up beside
// the configured ffmpeg first.
func Check(cfg *config.Config, filterAudio bool) []Status {
	results := CheckBinaries(Requirements(cfg, filterAudio))
	probe := ResolveFFprobe(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary)
	return append(results[:1:1], append([]Status{probe}, results[1:]...)...)
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}
