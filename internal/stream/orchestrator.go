package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aegis/internal/analysis"
	"aegis/internal/history"
	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/services"
	"aegis/internal/workerpool"
)

// chunkState is the reconciliation record of one in-flight chunk.
type chunkState struct {
	chunk    Chunk
	audio    []interval.Interval
	hasAudio bool
	video    analysis.VideoResult
	hasVideo bool
}

type finalizeJob struct {
	chunk Chunk
	audio []interval.Interval
	video analysis.VideoResult
}

// Stats summarizes a session.
type Stats struct {
	Submitted    int
	Emitted      int
	Dropped      int
	RenderFailed int
}

// Orchestrator reconciles per-chunk audio and video analysis and renders
// every chunk whose two results both arrived, exactly once.
type Orchestrator struct {
	opts     Options
	renderer Renderer
	logger   *slog.Logger
	journal  Journal
	session  string

	audio    *workerpool.Pool[Chunk, []interval.Interval]
	video    *workerpool.Pool[Chunk, analysis.VideoResult]
	finalize *workerpool.Pool[finalizeJob, FilteredChunk]

	mu     sync.Mutex
	table  map[int64]*chunkState
	seen   map[int64]struct{}
	closed bool
	stats  Stats

	// pollMu serializes Poll so Close can flush the last results before the
	// finalize pool stops accepting work.
	pollMu  sync.Mutex
	pending []finalizeJob

	outMu  sync.Mutex
	output []FilteredChunk

	forwardDone chan struct{}
	closeOnce   sync.Once
	closeDone   chan struct{}
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithJournal records every emitted, dropped or failed chunk under
// sessionID.
func WithJournal(journal Journal, sessionID string) Option {
	return func(o *Orchestrator) {
		o.journal = journal
		o.session = sessionID
	}
}

// New starts the analysis and finalize pools.
func New(opts Options, audio AudioProcessor, video VideoProcessor, renderer Renderer, logger *slog.Logger, options ...Option) *Orchestrator {
	opts = opts.withDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		opts:        opts,
		renderer:    renderer,
		logger:      logging.NewComponentLogger(logger, "stream"),
		table:       make(map[int64]*chunkState),
		seen:        make(map[int64]struct{}),
		forwardDone: make(chan struct{}),
		closeDone:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(o)
	}

	chunkAttrs := func(c Chunk) []logging.Attr { return []logging.Attr{logging.ChunkID(c.ID)} }
	o.audio = workerpool.New("audio", opts.AudioWorkers, opts.JobQueueSize,
		func(ctx context.Context, c Chunk) ([]interval.Interval, error) {
			ctx = services.WithModality(services.WithChunkID(ctx, c.ID), "audio")
			return audio.ProcessAudio(ctx, c)
		},
		logger,
		workerpool.WithJobTimeout[Chunk](opts.JobTimeout),
		workerpool.WithResultBuffer[Chunk](opts.ResultQueueSize),
		workerpool.WithJobAttrs(chunkAttrs),
	)
	o.video = workerpool.New("video", opts.VideoWorkers, opts.JobQueueSize,
		func(ctx context.Context, c Chunk) (analysis.VideoResult, error) {
			ctx = services.WithModality(services.WithChunkID(ctx, c.ID), "video")
			return video.ProcessVideo(ctx, c)
		},
		logger,
		workerpool.WithJobTimeout[Chunk](opts.JobTimeout),
		workerpool.WithResultBuffer[Chunk](opts.ResultQueueSize),
		workerpool.WithJobAttrs(chunkAttrs),
	)
	o.finalize = workerpool.New("finalize", opts.FinalizeWorkers, opts.JobQueueSize,
		o.finalizeChunk,
		logger,
		workerpool.WithResultBuffer[finalizeJob](opts.OutputQueueSize),
		workerpool.WithJobAttrs(func(j finalizeJob) []logging.Attr { return []logging.Attr{logging.ChunkID(j.chunk.ID)} }),
	)
	go o.forward()
	return o
}

// SubmitChunk registers chunk and queues it for both analyses. It never
// blocks; a saturated queue rejects the chunk with workerpool.ErrQueueFull
// and leaves no trace, so the caller may retry the same id.
func (o *Orchestrator) SubmitChunk(chunk Chunk) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, dup := o.seen[chunk.ID]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateChunk, chunk.ID)
	}
	// Only SubmitChunk feeds the analysis pools, so capacity checked under
	// o.mu cannot shrink before both submissions.
	if o.audio.Free() == 0 || o.video.Free() == 0 {
		return fmt.Errorf("submit chunk %d: %w", chunk.ID, workerpool.ErrQueueFull)
	}
	if err := o.audio.Submit(chunk); err != nil {
		return fmt.Errorf("submit chunk %d audio: %w", chunk.ID, err)
	}
	if err := o.video.Submit(chunk); err != nil {
		return fmt.Errorf("submit chunk %d video: %w", chunk.ID, err)
	}
	o.table[chunk.ID] = &chunkState{chunk: chunk}
	o.seen[chunk.ID] = struct{}{}
	o.stats.Submitted++
	return nil
}

// Poll drains every currently available analysis result, attaches it to its
// chunk and schedules finalize for chunks that became complete. It never
// waits for analysis or rendering. It returns the number of chunks scheduled.
func (o *Orchestrator) Poll() int {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.pollLocked()
}

func (o *Orchestrator) pollLocked() int {
	var ready []finalizeJob
	for {
		res, ok := o.audio.TryResult()
		if !ok {
			break
		}
		if job, done := o.attach(res.Job.ID, func(st *chunkState) {
			st.audio, st.hasAudio = res.Value, true
		}); done {
			ready = append(ready, job)
		}
	}
	for {
		res, ok := o.video.TryResult()
		if !ok {
			break
		}
		if job, done := o.attach(res.Job.ID, func(st *chunkState) {
			st.video, st.hasVideo = res.Value, true
		}); done {
			ready = append(ready, job)
		}
	}
	o.pending = append(o.pending, ready...)
	return o.flushPending()
}

// attach applies set to the chunk's state and, when both sides are present,
// removes the entry under the same lock so the chunk is finalized once.
func (o *Orchestrator) attach(id int64, set func(*chunkState)) (finalizeJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.table[id]
	if !ok {
		o.logger.Debug("result for unknown chunk dropped", logging.ChunkID(id))
		return finalizeJob{}, false
	}
	set(st)
	if !st.hasAudio || !st.hasVideo {
		return finalizeJob{}, false
	}
	delete(o.table, id)
	return finalizeJob{chunk: st.chunk, audio: st.audio, video: st.video}, true
}

// flushPending hands queued finalize jobs to the finalize pool, keeping any
// the pool cannot take yet.
func (o *Orchestrator) flushPending() int {
	scheduled := 0
	for len(o.pending) > 0 {
		if err := o.finalize.Submit(o.pending[0]); err != nil {
			break
		}
		o.pending = o.pending[1:]
		scheduled++
	}
	return scheduled
}

// GetReadyChunk pops the next rendered chunk in completion order.
func (o *Orchestrator) GetReadyChunk() (FilteredChunk, bool) {
	o.outMu.Lock()
	defer o.outMu.Unlock()
	if len(o.output) == 0 {
		return FilteredChunk{}, false
	}
	next := o.output[0]
	o.output = o.output[1:]
	return next, true
}

// forward moves finalize results into the output queue.
func (o *Orchestrator) forward() {
	defer close(o.forwardDone)
	for res := range o.finalize.Results() {
		c := res.Job.chunk
		if res.Failed() {
			o.mu.Lock()
			o.stats.RenderFailed++
			o.mu.Unlock()
			logging.ErrorWithContext(o.logger, "chunk render failed; dropped", "chunk_render_failed",
				logging.ChunkID(c.ID),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "inspect ffmpeg output above"),
			)
			o.record(c, history.ChunkFailed, "", 0, 0, res.Err.Error())
			continue
		}
		o.mu.Lock()
		o.stats.Emitted++
		o.mu.Unlock()
		o.outMu.Lock()
		o.output = append(o.output, res.Value)
		o.outMu.Unlock()
		o.record(c, history.ChunkEmitted, res.Value.Path, res.Value.Muted, res.Value.Blurred, "")
	}
}

// Close stops accepting chunks, drains both analysis pools, finalizes every
// chunk that completed and waits for rendering to finish. Chunks that only
// received one result are dropped. If ctx expires first, every chunk still
// awaiting a result is dropped at once and Close returns a timeout error;
// rendering already scheduled continues in the background. Close is
// idempotent.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		go o.drain()
	})
	select {
	case <-o.closeDone:
		return nil
	case <-ctx.Done():
		o.dropLeftovers("close deadline reached")
		return services.Wrap(services.ErrTimeout, "stream", "close", "drain still running", ctx.Err())
	}
}

func (o *Orchestrator) drain() {
	defer close(o.closeDone)
	start := time.Now()

	// Keep polling while the analysis pools drain so workers never block on
	// a full result queue.
	stop := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		ticker := time.NewTicker(o.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				o.Poll()
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); o.audio.Close() }()
	go func() { defer wg.Done(); o.video.Close() }()
	wg.Wait()
	close(stop)
	<-pumpDone

	o.pollMu.Lock()
	o.pollLocked()
	for len(o.pending) > 0 {
		time.Sleep(o.opts.PollInterval)
		o.flushPending()
	}
	o.finalize.Close()
	o.pollMu.Unlock()
	<-o.forwardDone

	o.dropLeftovers("stream ended mid-chunk")
	stats := o.Stats()
	o.logger.Info("stream drained",
		logging.EventType("stream_drained"),
		logging.Group("chunks",
			logging.Int("submitted", stats.Submitted),
			logging.Int("emitted", stats.Emitted),
			logging.Int("dropped", stats.Dropped),
			logging.Int("render_failed", stats.RenderFailed),
		),
		logging.Duration("drain_duration", time.Since(start)),
	)
}

// dropLeftovers discards every chunk still waiting on a result. Results
// that arrive for them later are treated as unknown.
func (o *Orchestrator) dropLeftovers(reason string) {
	o.mu.Lock()
	leftovers := make([]*chunkState, 0, len(o.table))
	for id, st := range o.table {
		leftovers = append(leftovers, st)
		delete(o.table, id)
	}
	o.stats.Dropped += len(leftovers)
	o.mu.Unlock()

	for _, st := range leftovers {
		missing := "video"
		switch {
		case !st.hasAudio && !st.hasVideo:
			missing = "audio and video"
		case !st.hasAudio:
			missing = "audio"
		}
		o.logger.Info("partial chunk dropped",
			logging.ChunkID(st.chunk.ID),
			logging.String("missing", missing),
			logging.String("reason", reason),
		)
		o.record(st.chunk, history.ChunkDropped, "", 0, 0, "missing "+missing+" result")
	}
}

// Dropped returns how many chunks were discarded at shutdown with only one
// analysis result.
func (o *Orchestrator) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats.Dropped
}

// Stats returns a snapshot of session counters.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// InFlight returns how many chunks await reconciliation.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.table)
}

func (o *Orchestrator) record(c Chunk, status, output string, muted float64, blurred int, errMsg string) {
	if o.journal == nil {
		return
	}
	rec := history.ChunkRecord{
		JobID:        o.session,
		ChunkID:      c.ID,
		StartTS:      c.StartTS,
		Duration:     c.Duration,
		Status:       status,
		Output:       output,
		MutedSeconds: muted,
		BlurRegions:  blurred,
		Error:        errMsg,
	}
	if err := o.journal.RecordChunk(context.Background(), rec); err != nil {
		o.logger.Warn("history record failed", logging.ChunkID(c.ID), logging.Error(err))
	}
}
