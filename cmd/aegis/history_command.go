package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aegis/internal/history"
)

var errHistoryDisabled = errors.New("run history is disabled (set history.enabled = true)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent filter and stream runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.RecentJobs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					shortID(job.ID),
					job.Kind,
					job.Status,
					humanize.RelTime(job.StartedAt, now, "ago", "from now"),
					runDuration(job),
					fmt.Sprintf("%.1f", job.MutedSeconds),
					fmt.Sprintf("%d", job.BlurRegions),
					chunkSummary(job),
					job.Input,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Kind", "Status", "Started", "Took", "Muted (s)", "Blur", "Chunks", "Input"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show the chunks of a stream run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			jobID, err := resolveJobID(cmd, store, args[0])
			if err != nil {
				return err
			}
			chunks, err := store.Chunks(cmd.Context(), jobID)
			if err != nil {
				return fmt.Errorf("list chunks: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, chunks)
			}
			out := cmd.OutOrStdout()
			if len(chunks) == 0 {
				fmt.Fprintf(out, "No chunks recorded for %s\n", jobID)
				return nil
			}
			rows := make([][]string, 0, len(chunks))
			for _, c := range chunks {
				rows = append(rows, []string{
					fmt.Sprintf("%d", c.ChunkID),
					fmt.Sprintf("%.2f", c.StartTS),
					fmt.Sprintf("%.2f", c.Duration),
					c.Status,
					fmt.Sprintf("%.2f", c.MutedSeconds),
					fmt.Sprintf("%d", c.BlurRegions),
					c.Error,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Chunk", "Start", "Duration", "Status", "Muted (s)", "Blur", "Error"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func openHistoryStore(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errHistoryDisabled
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// resolveJobID accepts a full id or the unique prefix printed by the list
// view.
func resolveJobID(cmd *cobra.Command, store *history.Store, value string) (string, error) {
	value = strings.TrimSpace(value)
	jobs, err := store.RecentJobs(cmd.Context(), 1000)
	if err != nil {
		return "", fmt.Errorf("list runs: %w", err)
	}
	var matches []string
	for _, job := range jobs {
		if job.ID == value {
			return job.ID, nil
		}
		if strings.HasPrefix(job.ID, value) {
			matches = append(matches, job.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no run matches %q", value)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d runs; use a longer prefix", value, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(job history.JobRecord) string {
	if job.FinishedAt.IsZero() || job.StartedAt.IsZero() {
		return "-"
	}
	return job.FinishedAt.Sub(job.StartedAt).Round(time.Second).String()
}

func chunkSummary(job history.JobRecord) string {
	if job.Kind != history.KindStream {
		return "-"
	}
	return fmt.Sprintf("%d/%d", job.ChunksEmitted, job.ChunksEmitted+job.ChunksDropped)
}
