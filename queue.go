package work

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "git.sr.ht/~sircmpwn/serialwork"

// Queue executes tasks one at a time, in the order they were enqueued, on a
// single worker goroutine owned by the queue.
type Queue struct {
	mutex    sync.Mutex
	tasks    []*Task
	state    WorkerState
	shutdown bool

	wake chan struct{}
	done chan struct{}

	name      string
	log       *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	onFailure func(t *Task, err error)
}

// Creates a new task queue and starts its worker.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		// One slot: a signal sent while the worker is busy is kept until it
		// next checks the queue.
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		name: "default",
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = slog.Default()
	}
	if q.tracer == nil {
		q.tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	if q.onFailure == nil {
		q.onFailure = q.logFailure
	}

	go q.run()
	q.log.Info("queue started", "queue", q.name)
	return q
}

// Returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueues a task. It does not wait for the task to run.
//
// Returns ErrQueueClosed if Shutdown was called; such a task never runs.
func (q *Queue) Enqueue(t *Task) error {
	if t == nil || t.fn == nil {
		return ErrNilTask
	}
	if t.Done() {
		return ErrAlreadyComplete
	}

	q.mutex.Lock()
	if q.shutdown {
		q.mutex.Unlock()
		q.metrics.rejected(q.name)
		return ErrQueueClosed
	}
	if !t.claim() {
		q.mutex.Unlock()
		return ErrAlreadyQueued
	}
	q.tasks = append(q.tasks, t)
	q.metrics.enqueued(q.name, len(q.tasks))
	q.mutex.Unlock()

	q.signal()
	q.log.Debug("task enqueued", "queue", q.name, "task", t.ID)
	return nil
}

// Creates and enqueues a new task for fn, returning the new task.
func (q *Queue) Submit(fn func()) (*Task, error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	t := NewTask(fn)
	if err := q.Enqueue(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Removes all pending tasks and returns how many were removed. A task which
// the worker has already started is not affected. Clearing an empty queue
// does nothing.
func (q *Queue) Clear() int {
	q.mutex.Lock()
	n := len(q.tasks)
	if n == 0 {
		q.mutex.Unlock()
		return 0
	}
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	q.metrics.cleared(q.name, n)
	q.mutex.Unlock()

	q.log.Info("queue cleared", "queue", q.name, "discarded", n)
	return n
}

// Returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.tasks)
}

// Returns the current worker state.
func (q *Queue) State() WorkerState {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.state
}

// Returns a channel which is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Stops accepting new tasks, discards pending ones, and blocks until the
// task currently executing (if any) has returned and the worker has exited.
// Calling it more than once is safe. It must not be called from a task.
func (q *Queue) Shutdown() {
	_ = q.ShutdownContext(context.Background())
}

// Like Shutdown, but gives up waiting when ctx is done and returns its error.
// The shutdown request stands: the worker exits once the in-flight task
// returns.
func (q *Queue) ShutdownContext(ctx context.Context) error {
	q.mutex.Lock()
	first := !q.shutdown
	if first {
		q.shutdown = true
		if q.state != StateTerminated {
			q.state = StateShuttingDown
		}
	}
	q.mutex.Unlock()

	if first {
		q.log.Info("queue shutting down", "queue", q.name)
		q.signal()
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// The worker loop. A task calling runtime.Goexit unwinds the worker
// goroutine; a replacement is started so pending and later tasks still run.
func (q *Queue) run() {
	stopped := false
	defer func() {
		if stopped {
			close(q.done)
			return
		}
		q.log.Error("worker goroutine exited inside a task, restarting", "queue", q.name)
		go q.run()
	}()

	for {
		t, ok := q.next()
		if !ok {
			break
		}
		q.execute(t)
	}
	stopped = true
}

// Blocks until a task is available or shutdown is requested. Returns false
// on shutdown, after dropping whatever is still pending.
func (q *Queue) next() (*Task, bool) {
	for {
		q.mutex.Lock()
		if q.shutdown {
			n := len(q.tasks)
			q.tasks = nil
			q.state = StateTerminated
			q.metrics.discarded(q.name, n)
			q.mutex.Unlock()

			q.log.Info("worker shut down", "queue", q.name, "discarded", n)
			return nil, false
		}
		if len(q.tasks) > 0 {
			t := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.state = StateRunning
			q.metrics.dequeued(q.name, len(q.tasks))
			q.mutex.Unlock()
			return t, true
		}
		q.state = StateIdle
		q.mutex.Unlock()

		<-q.wake
	}
}

func (q *Queue) execute(t *Task) {
	if !t.start() {
		// Run was called on it directly after it was queued.
		q.log.Warn("task already executed, skipping", "queue", q.name, "task", t.ID)
		q.metrics.idle(q.name)
		return
	}

	ctx, span := q.tracer.Start(context.Background(), "work.task",
		trace.WithAttributes(
			attribute.String("work.queue", q.name),
			attribute.String("work.task.id", t.ID.String()),
		))

	q.log.Debug("task started", "queue", q.name, "task", t.ID)
	start := time.Now()

	// Deferred so that a task calling runtime.Goexit is still reported.
	err, hookErr := ErrTaskExited, error(nil)
	defer func() {
		q.metrics.finished(q.name, time.Since(start), err)
		if hookErr != nil {
			span.AddEvent("after hook failed", trace.WithAttributes(
				attribute.String("error", hookErr.Error())))
			q.log.Error("task after hook failed", "queue", q.name, "task", t.ID, "error", hookErr)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if herr := protect(func() { q.onFailure(t, err) }); herr != nil {
				q.log.Error("failure handler panicked", "queue", q.name, "task", t.ID, "error", herr)
			}
		}
		span.End()
	}()

	err, hookErr = t.run(ctx)
}

func (q *Queue) logFailure(t *Task, err error) {
	args := []any{"queue", q.name, "task", t.ID, "error", err}
	var perr *PanicError
	if errors.As(err, &perr) {
		args = append(args, "stack", string(perr.Stack))
	}
	q.log.Error("task failed", args...)
}
