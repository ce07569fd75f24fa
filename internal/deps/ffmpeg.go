package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe reports the ffprobe binary aegis will execute.
//
// An ffprobe configured as an explicit path is used as is. A bare name
// prefers the ffprobe shipped next to the resolved ffmpeg, so static builds
// unpacked outside PATH probe with the matching version, and falls back to
// PATH otherwise.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) Status {
	result := Status{
		Name:        "FFprobe",
		Description: "Stream inspection",
	}
	name := strings.TrimSpace(ffprobeCommand)
	if name == "" {
		name = "ffprobe"
	}

	if strings.ContainsRune(name, filepath.Separator) {
		result.Command = name
		if info, err := os.Stat(name); err == nil && isExecutable(info) {
			result.Available = true
			return result
		}
		result.Detail = fmt.Sprintf("binary %q not executable", name)
		return result
	}

	if ffmpegBinary := strings.TrimSpace(ffmpegCommand); ffmpegBinary != "" {
		if resolved, err := exec.LookPath(ffmpegBinary); err == nil {
			candidate := sibling(resolved, name)
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if probePath, err := exec.LookPath(name); err == nil {
		result.Command = probePath
		result.Available = true
		return result
	}

	result.Command = name
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func sibling(binaryPath, name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
