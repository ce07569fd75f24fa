package preflight

import (
	"context"
	"strings"

	"aegis/internal/config"
)

// CheckVisionFromConfig evaluates the vision endpoint from config and
// connectivity.
func CheckVisionFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Vision endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Vision.URL) == "" {
		return Result{Name: name, Detail: "Missing URL (set vision.url)"}
	}
	return CheckVision(ctx, cfg.Vision.URL, cfg.Vision.APIKey)
}
