package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"aegis/internal/logging"
)

var (
	// ErrClosed is returned by Submit after Close has been called.
	ErrClosed = errors.New("worker pool closed")
	// ErrQueueFull is returned by Submit when the job queue is saturated.
	ErrQueueFull = errors.New("worker pool queue full")
)

// ProcessFunc handles one job.
type ProcessFunc[J, R any] func(ctx context.Context, job J) (R, error)

// Result pairs a job with its outcome. A failed job carries the zero value
// of R together with the error.
type Result[J, R any] struct {
	Job   J
	Value R
	Err   error
}

// Failed reports whether the job errored and was resolved fail-open.
func (r Result[J, R]) Failed() bool { return r.Err != nil }

// Option configures optional Pool behavior.
type Option[J any] func(*options[J])

type options[J any] struct {
	ctx          context.Context
	jobTimeout   time.Duration
	resultBuffer int
	jobAttrs     func(J) []logging.Attr
}

// WithContext sets the parent context passed to every job.
func WithContext[J any](ctx context.Context) Option[J] {
	return func(o *options[J]) { o.ctx = ctx }
}

// WithJobTimeout bounds each job. Zero disables the bound.
func WithJobTimeout[J any](d time.Duration) Option[J] {
	return func(o *options[J]) { o.jobTimeout = d }
}

// WithResultBuffer sets the result channel capacity.
func WithResultBuffer[J any](n int) Option[J] {
	return func(o *options[J]) { o.resultBuffer = n }
}

// WithJobAttrs attaches job-identifying attributes to failure logs.
func WithJobAttrs[J any](fn func(J) []logging.Attr) Option[J] {
	return func(o *options[J]) { o.jobAttrs = fn }
}

type envelope[J any] struct {
	job  J
	stop bool
}

// Pool runs a fixed number of workers over one bounded job queue and
// publishes every outcome, success or failure, to one bounded result queue.
type Pool[J, R any] struct {
	name    string
	process ProcessFunc[J, R]
	logger  *slog.Logger
	opts    options[J]
	workers int

	jobs    chan envelope[J]
	results chan Result[J, R]
	wg      sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// New starts a pool with the given worker count and job queue capacity.
func New[J, R any](name string, workers, queueSize int, process ProcessFunc[J, R], logger *slog.Logger, opts ...Option[J]) *Pool[J, R] {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	o := options[J]{ctx: context.Background(), resultBuffer: queueSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resultBuffer <= 0 {
		o.resultBuffer = queueSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pool[J, R]{
		name:    name,
		process: process,
		logger:  logging.NewComponentLogger(logger, name),
		opts:    o,
		workers: workers,
		jobs:    make(chan envelope[J], queueSize),
		results: make(chan Result[J, R], o.resultBuffer),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Name returns the pool's name.
func (p *Pool[J, R]) Name() string { return p.name }

// Submit enqueues a job without blocking.
func (p *Pool[J, R]) Submit(job J) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- envelope[J]{job: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Free returns how many more jobs the queue accepts right now. It only
// grows between calls unless the caller submits.
func (p *Pool[J, R]) Free() int { return cap(p.jobs) - len(p.jobs) }

// Results exposes the result queue. It is closed once Close has joined
// every worker.
func (p *Pool[J, R]) Results() <-chan Result[J, R] { return p.results }

// TryResult pops one result without blocking.
func (p *Pool[J, R]) TryResult() (Result[J, R], bool) {
	select {
	case r, ok := <-p.results:
		return r, ok
	default:
		var zero Result[J, R]
		return zero, false
	}
}

// Close stops accepting jobs, sends one stop marker per worker behind the
// jobs already queued and waits for every worker to exit. Results produced
// while draining must be consumed concurrently when the result queue is
// smaller than the backlog. Close is idempotent.
func (p *Pool[J, R]) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		for i := 0; i < p.workers; i++ {
			p.jobs <- envelope[J]{stop: true}
		}
		p.wg.Wait()
		close(p.results)
		p.logger.Debug("worker pool drained", logging.Int("workers", p.workers))
	})
}

func (p *Pool[J, R]) work() {
	defer p.wg.Done()
	for env := range p.jobs {
		if env.stop {
			return
		}
		p.results <- p.run(env.job)
	}
}

func (p *Pool[J, R]) run(job J) (res Result[J, R]) {
	res.Job = job
	ctx := p.opts.ctx
	if p.opts.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.jobTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("%s worker panic: %v", p.name, rec)
			p.logger.Error("worker recovered from panic",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
		}
		if res.Err != nil {
			var zero R
			res.Value = zero
			attrs := []logging.Attr{logging.Error(res.Err)}
			if p.opts.jobAttrs != nil {
				attrs = append(p.opts.jobAttrs(job), attrs...)
			}
			logging.WarnWithContext(p.logger, "job failed; resolving as empty", "job_failed_open",
				append(attrs,
					logging.String(logging.FieldErrorHint, "check the detector service"),
					logging.String(logging.FieldImpact, "content in this job passes unfiltered"),
				)...,
			)
		}
	}()
	value, err := p.process(ctx, job)
	res.Value, res.Err = value, err
	return res
}
