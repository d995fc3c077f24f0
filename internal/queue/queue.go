// Package queue serializes generation requests behind a single worker and
// spaces them by a minimum interval.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// DefaultMinInterval is the spacing between generation calls.
const DefaultMinInterval = 3000 * time.Millisecond

// ErrClosed is returned for requests that were queued or submitted after Close.
var ErrClosed = errors.New("queue: closed")

// Task is one generation request.
type Task struct {
	History []generation.Content
	Config  generation.Config
}

// Result resolves one Task.
type Result struct {
	Text string
	Err  error
}

// Observer receives queue telemetry.
type Observer interface {
	ObserveQueueDepth(depth int)
	ObserveQueueWait(seconds float64)
}

type job struct {
	id         string
	ctx        context.Context
	task       Task
	result     chan Result
	enqueuedAt time.Time
}

// Queue dispatches tasks to a generator in submission order with at most one
// call in flight. Before each call it waits until MinInterval has passed since
// the previous call completed.
type Queue struct {
	gen         generation.Generator
	minInterval time.Duration
	now         func() time.Time
	sleep       generation.SleepFunc
	logger      *logging.Logger
	observer    Observer

	mu          sync.Mutex
	pending     []*job
	processing  bool
	closed      bool
	lastRequest time.Time
	closing     context.Context
	stop        context.CancelFunc
}

// Option customizes a Queue.
type Option func(*Queue)

// WithMinInterval overrides DefaultMinInterval. Zero disables spacing.
func WithMinInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.minInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithSleep replaces the timer used to honor the interval.
func WithSleep(sleep generation.SleepFunc) Option {
	return func(q *Queue) {
		if sleep != nil {
			q.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithObserver registers a telemetry sink.
func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observer = o }
}

// New creates a Queue in front of gen.
func New(gen generation.Generator, opts ...Option) *Queue {
	if gen == nil {
		panic("queue: generator cannot be nil")
	}
	closing, stop := context.WithCancel(context.Background())
	q := &Queue{
		gen:         gen,
		minInterval: DefaultMinInterval,
		now:         time.Now,
		sleep:       sleepContext,
		logger:      logging.Default(),
		closing:     closing,
		stop:        stop,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds task to the queue and returns a channel that receives exactly
// one Result. The generation call is not aborted if ctx ends after dispatch.
func (q *Queue) Enqueue(ctx context.Context, task Task) <-chan Result {
	if ctx == nil {
		ctx = context.Background()
	}
	j := &job{
		id:         uuid.NewString(),
		ctx:        ctx,
		task:       task,
		result:     make(chan Result, 1),
		enqueuedAt: q.now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		j.result <- Result{Err: ErrClosed}
		return j.result
	}
	q.pending = append(q.pending, j)
	depth := len(q.pending)
	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	q.observeDepth(depth)
	q.logger.Debug("generation request queued", "request_id", j.id, "depth", depth)
	if start {
		go q.drain()
	}
	return j.result
}

// Submit enqueues task and waits for its result or for ctx to end.
func (q *Queue) Submit(ctx context.Context, task Task) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case r := <-q.Enqueue(ctx, task):
		return r.Text, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Generate lets the queue stand in for a generation.Generator.
func (q *Queue) Generate(ctx context.Context, history []generation.Content, cfg generation.Config) (string, error) {
	return q.Submit(ctx, Task{History: history, Config: cfg})
}

// Len reports how many tasks wait for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close rejects every queued task with ErrClosed. A call already in flight
// finishes normally.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	q.stop()
	for _, j := range pending {
		j.result <- Result{Err: ErrClosed}
	}
	q.observeDepth(0)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		depth := len(q.pending)
		last := q.lastRequest
		q.mu.Unlock()

		q.observeDepth(depth)
		q.run(j, last)
	}
}

func (q *Queue) run(j *job, last time.Time) {
	if err := j.ctx.Err(); err != nil {
		j.result <- Result{Err: err}
		return
	}

	if !last.IsZero() && q.minInterval > 0 {
		if elapsed := q.now().Sub(last); elapsed < q.minInterval {
			wait := q.minInterval - elapsed
			q.logger.Debug("generation request waiting for interval", "request_id", j.id, "wait_ms", wait.Milliseconds())
			if err := q.sleep(q.closing, wait); err != nil {
				j.result <- Result{Err: ErrClosed}
				return
			}
		}
	}
	if err := j.ctx.Err(); err != nil {
		j.result <- Result{Err: err}
		return
	}

	dispatched := q.now()
	if q.observer != nil {
		q.observer.ObserveQueueWait(dispatched.Sub(j.enqueuedAt).Seconds())
	}

	text, err := q.gen.Generate(context.WithoutCancel(j.ctx), j.task.History, j.task.Config)

	q.mu.Lock()
	q.lastRequest = q.now()
	q.mu.Unlock()

	if err != nil {
		q.logger.Debug("generation request failed", "request_id", j.id, "error", err)
	}
	j.result <- Result{Text: text, Err: err}
}

func (q *Queue) observeDepth(depth int) {
	if q.observer != nil {
		q.observer.ObserveQueueDepth(depth)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
