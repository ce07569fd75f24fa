package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"aegis/internal/config"
	"aegis/internal/history"
	"aegis/internal/logging"
	"aegis/internal/media/ffmpeg"
	"aegis/internal/services"
	"aegis/internal/stream"
	"aegis/internal/workerpool"
)

func newStreamCommand(ctx *commandContext) *cobra.Command {
	var output string
	var chunkSeconds int
	var keepChunks bool

	cmd := &cobra.Command{
		Use:   "stream INPUT",
		Short: "Replay a media file as live chunks through the stream pipeline",
		Long: "Cut INPUT into fixed-length chunks, feed them to the stream orchestrator as a\n" +
			"live source would, and join the censored chunks into a single output file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if chunkSeconds > 0 {
				cfg.Stream.ChunkSeconds = chunkSeconds
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			input, output, err := resolveStreamPaths(cfg, args[0], output)
			if err != nil {
				return err
			}

			sessionID := uuid.NewString()
			workDir := filepath.Join(cfg.Paths.WorkDir, "stream-"+sessionID)
			p := newPipeline(cfg, pipelineOptions{
				SampleFPS: cfg.Stream.SampleFPS,
				Streaming: true,
				WorkDir:   workDir,
			}, logger)

			probe, err := p.prober.Inspect(cmd.Context(), input)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "stream", "probe", "inspect input", err)
			}
			if err := checkEnvironment(cmd.Context(), cfg, true, probe.HasVideo()); err != nil {
				return err
			}

			lock, err := lockOutput(output)
			if err != nil {
				return err
			}
			defer releaseOutput(lock)
			if !keepChunks {
				defer os.RemoveAll(workDir)
			}

			store := ctx.openHistory(logger)
			if store != nil {
				defer store.Close()
			}

			session := &streamSession{
				id:       sessionID,
				cfg:      cfg,
				input:    input,
				output:   output,
				workDir:  workDir,
				hasVideo: probe.HasVideo(),
				pipe:     p,
				store:    store,
				logger:   logger,
			}
			report, err := session.run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStreamSummary(cmd.OutOrStdout(), report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <output_dir>/<name>_stream<ext>)")
	cmd.Flags().IntVar(&chunkSeconds, "chunk-seconds", 0, "Override stream.chunk_seconds")
	cmd.Flags().BoolVar(&keepChunks, "keep-chunks", false, "Keep segmented and filtered chunks in the work directory")
	return cmd
}

func resolveStreamPaths(cfg *config.Config, input, output string) (string, string, error) {
	input, err := config.ExpandPath(strings.TrimSpace(input))
	if err != nil {
		return "", "", err
	}
	if input, err = filepath.Abs(input); err != nil {
		return "", "", fmt.Errorf("resolve input: %w", err)
	}
	info, err := os.Stat(input)
	if err != nil {
		return "", "", services.Wrap(services.ErrNotFound, "stream", "stat input", "input not readable", err)
	}
	if info.IsDir() {
		return "", "", services.Wrap(services.ErrValidation, "stream", "stat input", "input is a directory", nil)
	}
	if strings.TrimSpace(output) == "" {
		ext := filepath.Ext(input)
		stem := strings.TrimSuffix(filepath.Base(input), ext)
		return input, filepath.Join(cfg.Paths.OutputDir, stem+"_stream"+ext), nil
	}
	if output, err = config.ExpandPath(strings.TrimSpace(output)); err != nil {
		return "", "", err
	}
	if output, err = filepath.Abs(output); err != nil {
		return "", "", fmt.Errorf("resolve output: %w", err)
	}
	return input, output, nil
}

type streamSession struct {
	id       string
	cfg      *config.Config
	input    string
	output   string
	workDir  string
	hasVideo bool
	pipe     *pipeline
	store    *history.Store
	logger   *slog.Logger
}

type streamReport struct {
	SessionID string
	Output    string
	Chunks    []stream.FilteredChunk
	Stats     stream.Stats
	Elapsed   time.Duration
}

func (s *streamSession) run(ctx context.Context) (streamReport, error) {
	start := time.Now()
	ctx = services.WithRequestID(ctx, s.id)
	report := streamReport{SessionID: s.id, Output: s.output}

	rec := history.JobRecord{
		ID:        s.id,
		Kind:      history.KindStream,
		Input:     s.input,
		Output:    s.output,
		Status:    history.JobRunning,
		StartedAt: start,
	}
	s.record(ctx, rec)

	chunks, stats, err := s.process(ctx)
	report.Chunks = chunks
	report.Stats = stats
	if err == nil {
		err = s.join(ctx, chunks)
	}
	report.Elapsed = time.Since(start)

	rec.FinishedAt = time.Now()
	rec.ChunksEmitted = stats.Emitted
	rec.ChunksDropped = stats.Dropped + stats.RenderFailed
	for _, c := range chunks {
		rec.MutedSeconds += c.Muted
		rec.BlurRegions += c.Blurred
	}
	if err != nil {
		rec.Status = services.FailureOutcome(err)
		rec.Error = err.Error()
		s.record(ctx, rec)
		return report, err
	}
	rec.Status = history.JobCompleted
	s.record(ctx, rec)
	return report, nil
}

// process segments the input and pushes every chunk through the
// orchestrator, polling while submission is saturated. Emitted chunks are
// returned sorted by id.
func (s *streamSession) process(ctx context.Context) ([]stream.FilteredChunk, stream.Stats, error) {
	segmentDir := filepath.Join(s.workDir, "chunks")
	pieces, err := s.pipe.tool.Segment(ctx, s.input, segmentDir, float64(s.cfg.Stream.ChunkSeconds), s.hasVideo)
	if err != nil {
		return nil, stream.Stats{}, services.Wrap(services.ErrExternalTool, "stream", "segment", "cut input into chunks", err)
	}
	if len(pieces) == 0 {
		return nil, stream.Stats{}, services.Wrap(services.ErrValidation, "stream", "segment", "input produced no chunks", nil)
	}
	s.logger.Info("input segmented",
		logging.EventType("stream_segmented"),
		logging.Int("chunks", len(pieces)),
		logging.Int("chunk_seconds", s.cfg.Stream.ChunkSeconds),
	)

	opts := stream.OptionsFromConfig(s.cfg)
	opts.OutputDir = filepath.Join(s.workDir, "filtered")
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, stream.Stats{}, fmt.Errorf("create chunk output dir: %w", err)
	}
	processors := stream.AnalyzerProcessors{Audio: s.pipe.audio, Video: s.pipe.video}
	var options []stream.Option
	if s.store != nil {
		options = append(options, stream.WithJournal(s.store, s.id))
	}
	orch := stream.New(opts, processors, processors, s.pipe.renderer, s.logger, options...)

	var emitted []stream.FilteredChunk
	collect := func() {
		orch.Poll()
		for {
			chunk, ok := orch.GetReadyChunk()
			if !ok {
				return
			}
			emitted = append(emitted, chunk)
		}
	}

	var submitErr error
	startTS := 0.0
	for i, piece := range pieces {
		chunk, err := s.describeChunk(ctx, int64(i), piece, startTS)
		if err != nil {
			submitErr = err
			break
		}
		startTS += chunk.Duration
		if err := submitWithBackpressure(ctx, orch, chunk, opts.PollInterval, collect); err != nil {
			submitErr = err
			break
		}
		collect()
	}

	closeErr := orch.Close(ctx)
	collect()

	sort.Slice(emitted, func(i, j int) bool { return emitted[i].ID < emitted[j].ID })
	stats := orch.Stats()
	if submitErr != nil {
		return emitted, stats, submitErr
	}
	if closeErr != nil {
		return emitted, stats, closeErr
	}
	if len(emitted) == 0 {
		return emitted, stats, services.Wrap(services.ErrExternalTool, "stream", "finalize", "no chunk was rendered", nil)
	}
	return emitted, stats, nil
}

func (s *streamSession) describeChunk(ctx context.Context, id int64, path string, startTS float64) (stream.Chunk, error) {
	probe, err := s.pipe.prober.Inspect(ctx, path)
	if err != nil {
		return stream.Chunk{}, services.Wrap(services.ErrExternalTool, "stream", "probe chunk", filepath.Base(path), err)
	}
	chunk := stream.Chunk{
		ID:       id,
		StartTS:  startTS,
		Duration: probe.DurationSeconds(),
		Path:     path,
		HasAudio: probe.HasAudio(),
		HasVideo: probe.HasVideo(),
	}
	if primary, ok := probe.PrimaryVideo(); ok {
		chunk.Width = primary.Width
		chunk.Height = primary.Height
		chunk.FrameRate = primary.FrameRate()
	}
	if chunk.Duration <= 0 {
		chunk.Duration = float64(s.cfg.Stream.ChunkSeconds)
	}
	return chunk, nil
}

// submitWithBackpressure retries a saturated submission after draining
// results, which frees queue capacity as workers finish.
func submitWithBackpressure(ctx context.Context, orch *stream.Orchestrator, chunk stream.Chunk, wait time.Duration, drain func()) error {
	for {
		err := orch.SubmitChunk(chunk)
		if !errors.Is(err, workerpool.ErrQueueFull) {
			return err
		}
		drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *streamSession) join(ctx context.Context, chunks []stream.FilteredChunk) error {
	files := make([]string, 0, len(chunks))
	for _, c := range chunks {
		files = append(files, c.Path)
	}
	listPath := filepath.Join(s.workDir, "concat.txt")
	if err := ffmpeg.WriteConcatList(listPath, files); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := s.pipe.tool.Concat(ctx, listPath, s.output); err != nil {
		return services.Wrap(services.ErrExternalTool, "stream", "concat", "join filtered chunks", err)
	}
	return nil
}

func (s *streamSession) record(ctx context.Context, rec history.JobRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordJob(ctx, rec); err != nil {
		logging.WarnWithContext(s.logger, "history record failed", "history_write_failed",
			logging.String(logging.FieldJobID, rec.ID),
			logging.Error(err),
		)
	}
}

func renderStreamSummary(out io.Writer, report streamReport) string {
	rows := make([][]string, 0, len(report.Chunks)+1)
	var muted float64
	var blurred int
	for _, c := range report.Chunks {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.ID),
			fmt.Sprintf("%.2f", c.StartTS),
			fmt.Sprintf("%.2f", c.Duration),
			fmt.Sprintf("%.2f", c.Muted),
			fmt.Sprintf("%d", c.Blurred),
		})
		muted += c.Muted
		blurred += c.Blurred
	}
	rows = append(rows, []string{
		"total",
		"",
		fmt.Sprintf("%d emitted", report.Stats.Emitted),
		fmt.Sprintf("%.2f", muted),
		fmt.Sprintf("%d", blurred),
	})
	var b strings.Builder
	b.WriteString(renderTable(out,
		[]string{"Chunk", "Start", "Duration", "Muted (s)", "Blur"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintf(&b, "\nSession %s: %d submitted, %d dropped, %d render failures in %s\nOutput: %s",
		report.SessionID, report.Stats.Submitted, report.Stats.Dropped, report.Stats.RenderFailed,
		report.Elapsed.Round(time.Millisecond), report.Output)
	return b.String()
}
