package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aegis/internal/config"
	"aegis/internal/deps"
	"aegis/internal/filejob"
	"aegis/internal/interval"
	"aegis/internal/preflight"
	"aegis/internal/services"
)

var audioExtensions = map[string]bool{
	".aac": true, ".flac": true, ".m4a": true, ".mp3": true,
	".oga": true, ".ogg": true, ".opus": true, ".wav": true, ".wma": true,
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	var output string
	var media string
	var filterAudio bool
	var filterVideo bool

	cmd := &cobra.Command{
		Use:   "filter INPUT",
		Short: "Mute profanity and blur unsafe imagery in a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := buildFilterJob(cfg, args[0], output, media,
				cmd.Flags().Changed("audio"), filterAudio,
				cmd.Flags().Changed("video"), filterVideo)
			if err != nil {
				return err
			}
			if err := job.Validate(); err != nil {
				return err
			}
			if err := checkEnvironment(cmd.Context(), cfg, job.FilterAudio, job.FilterVideo); err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			lock, err := lockOutput(job.Output)
			if err != nil {
				return err
			}
			defer releaseOutput(lock)

			store := ctx.openHistory(logger)
			if store != nil {
				defer store.Close()
			}

			p := newPipeline(cfg, pipelineOptions{
				SampleFPS: filejob.ClampSampleFPS(cfg.File.SampleFPS),
			}, logger)
			fileDeps := filejob.Deps{
				Prober:    p.prober,
				Extractor: p.tool,
				Audio:     p.audio,
				Video:     p.video,
				Renderer:  p.renderer,
			}
			if store != nil {
				fileDeps.History = store
			}

			orch := filejob.New(fileDeps, filejob.OptionsFromConfig(cfg), logger)
			outcome, err := orch.Run(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFilterSummary(cmd.OutOrStdout(), outcome))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <output_dir>/<name>_filtered<ext>)")
	cmd.Flags().StringVar(&media, "media", "", "Input media type: audio or video (default: from extension)")
	cmd.Flags().BoolVar(&filterAudio, "audio", true, "Mute profanity in the audio track")
	cmd.Flags().BoolVar(&filterVideo, "video", true, "Blur unsafe imagery (video media only)")
	return cmd
}

// buildFilterJob resolves defaults: media type from the extension, output
// under the configured output directory, and video filtering only for
// video inputs unless the flag was given explicitly.
func buildFilterJob(cfg *config.Config, input, output, media string, audioSet, filterAudio, videoSet, filterVideo bool) (filejob.Job, error) {
	input, err := config.ExpandPath(strings.TrimSpace(input))
	if err != nil {
		return filejob.Job{}, err
	}
	input, err = filepath.Abs(input)
	if err != nil {
		return filejob.Job{}, fmt.Errorf("resolve input: %w", err)
	}

	mediaType := filejob.MediaVideo
	if strings.TrimSpace(media) != "" {
		mediaType, err = filejob.ParseMediaType(media)
		if err != nil {
			return filejob.Job{}, err
		}
	} else if audioExtensions[strings.ToLower(filepath.Ext(input))] {
		mediaType = filejob.MediaAudio
	}

	if strings.TrimSpace(output) == "" {
		ext := filepath.Ext(input)
		stem := strings.TrimSuffix(filepath.Base(input), ext)
		output = filepath.Join(cfg.Paths.OutputDir, stem+"_filtered"+ext)
	} else {
		output, err = config.ExpandPath(strings.TrimSpace(output))
		if err != nil {
			return filejob.Job{}, err
		}
		if output, err = filepath.Abs(output); err != nil {
			return filejob.Job{}, fmt.Errorf("resolve output: %w", err)
		}
	}

	job := filejob.Job{
		Input:       input,
		Output:      output,
		MediaType:   mediaType,
		FilterAudio: filterAudio,
		FilterVideo: filterVideo,
	}
	if !audioSet {
		job.FilterAudio = true
	}
	if !videoSet {
		job.FilterVideo = mediaType == filejob.MediaVideo
	}
	return job, nil
}

// checkEnvironment fails fast when a required binary is missing or a
// preflight check does not pass.
func checkEnvironment(ctx context.Context, cfg *config.Config, audio, video bool) error {
	var problems []string
	for _, status := range deps.Missing(deps.Check(cfg, audio)) {
		if status.Optional {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	for _, result := range preflight.Failures(preflight.RunAll(ctx, cfg, preflight.Needs{Audio: audio, Video: video})) {
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "cli", "preflight",
		"environment not ready ("+strings.Join(problems, "; ")+")", errors.New("run `aegis deps` for details"))
}

func renderFilterSummary(out io.Writer, outcome filejob.Outcome) string {
	result := "censored"
	if outcome.Copied {
		result = "copied (nothing to censor)"
	}
	rows := [][]string{
		{"Job", outcome.JobID},
		{"Result", result},
		{"Output", outcome.Output},
	}
	if info, err := os.Stat(outcome.Output); err == nil {
		rows = append(rows, []string{"Size", humanize.IBytes(uint64(info.Size()))})
	}
	if outcome.AudioIntervals != nil {
		rows = append(rows, []string{"Muted", fmt.Sprintf("%.2fs in %d span(s)", outcome.MutedSeconds(), len(outcome.AudioIntervals))})
	}
	if outcome.VideoIntervals != nil {
		rows = append(rows,
			[]string{"Unsafe video", fmt.Sprintf("%.2fs in %d span(s)", interval.Total(outcome.VideoIntervals), len(outcome.VideoIntervals))},
			[]string{"Blur regions", fmt.Sprintf("%d", outcome.BlurRegions)},
			[]string{"Frames", fmt.Sprintf("%d sampled, %d failed", outcome.Frames, outcome.FailedFrames)},
		)
	}
	rows = append(rows, []string{"Elapsed", outcome.Elapsed.Round(time.Millisecond).String()})
	return renderTable(out, []string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}
