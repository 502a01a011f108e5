package work

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// Returned when a task is run which was already executed once.
	ErrAlreadyComplete = errors.New("This task was already executed once")

	// Returned when a task is enqueued which was already accepted by a queue.
	ErrAlreadyQueued = errors.New("This task was already accepted by a queue")

	// Returned when a nil task, or a task without a function, is enqueued.
	ErrNilTask = errors.New("Cannot enqueue a nil task")

	// Returned by Enqueue once the queue has been asked to shut down.
	ErrQueueClosed = errors.New("This queue has been shut down")

	// Reported for a task whose function called runtime.Goexit instead of
	// returning.
	ErrTaskExited = errors.New("This task exited its goroutine without returning")
)

// PanicError is the failure reported for a task whose function panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Stores state for a task which shall be or has been executed. Each task may
// be accepted by a queue, and executed, only once.
type Task struct {
	// Unique identifier, assigned by NewTask. Used in logs and traces.
	ID uuid.UUID

	// Free-form diagnostic values. Not read by the queue.
	Metadata map[string]interface{}

	after  func(ctx context.Context, err error)
	fn     func()
	queued atomic.Bool
	done   atomic.Bool
}

// Creates a new task for a given function.
func NewTask(fn func()) *Task {
	return &Task{
		ID:       uuid.New(),
		Metadata: make(map[string]interface{}),
		fn:       fn,
	}
}

// Sets a function which will be executed once the task has run, successfully
// or not. The result (nil or a *PanicError) is passed to the callee. It is
// not called for tasks which are cleared or discarded before they start.
func (t *Task) After(fn func(ctx context.Context, err error)) *Task {
	if t.after != nil {
		panic(errors.New("This task already has an 'After' function assigned"))
	}
	t.after = fn
	return t
}

// Returns true once this task has been executed, successfully or not.
func (t *Task) Done() bool {
	return t.done.Load()
}

// Executes the task function on the calling goroutine, then its After
// function. A panic in either is recovered and returned as a *PanicError.
//
// Queues execute tasks from their worker and report After failures apart from
// the task's own; Run is for callers which wish to execute a task
// synchronously, and returns both joined.
func (t *Task) Run(ctx context.Context) error {
	if !t.start() {
		return ErrAlreadyComplete
	}
	err, hookErr := t.run(ctx)
	if hookErr != nil {
		return errors.Join(err, hookErr)
	}
	return err
}

func (t *Task) start() bool {
	return t.done.CompareAndSwap(false, true)
}

// Runs the function and then the After hook. If the function calls
// runtime.Goexit the hook still runs, with ErrTaskExited, while the goroutine
// unwinds.
func (t *Task) run(ctx context.Context) (err, hookErr error) {
	returned := false
	defer func() {
		if !returned {
			err = ErrTaskExited
		}
		if t.after != nil {
			after := t.after
			hookErr = protect(func() { after(ctx, err) })
		}
	}()
	err = protect(t.fn)
	returned = true
	return err, nil
}

func (t *Task) claim() bool {
	return t.queued.CompareAndSwap(false, true)
}

func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
