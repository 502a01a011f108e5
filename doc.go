// work is a serial task queue for Go programs. Tasks are queued by any number
// of goroutines and executed one at a time, in the order they were queued, on
// a single background goroutine owned by the queue.
//
// To use it:
//
//	import (
//		"git.sr.ht/~sircmpwn/serialwork"
//	)
//
//	// ...
//	q := work.NewQueue()
//	defer q.Shutdown()
//
//	q.Submit(func() {
//		// Thing which takes a while...
//	})
//
// Submit returns as soon as the task is queued. Clear drops every task which
// has not started yet; a task which is already running is left to finish.
// Shutdown does the same for the backlog, then waits for the running task and
// the worker to exit. Tasks submitted after Shutdown are rejected with
// ErrQueueClosed.
//
// A task which panics does not stop the queue. The panic is recovered and
// reported as a *PanicError to the failure handler (see WithFailureHandler)
// and to the task's After function. A task which calls runtime.Goexit is
// reported the same way with ErrTaskExited, and the worker is replaced. A
// panic in the After function is logged but does not fail the task:
//
//	task := work.NewTask(func() {
//		// ...
//	}).After(func(ctx context.Context, err error) {
//		// err is nil, a *PanicError or ErrTaskExited
//	})
//	q.Enqueue(task)
//
// Tasks are never retried. There is no bound on the number of pending tasks,
// and no timeout on a running one: a task which never returns stalls the
// queue. Use ShutdownContext to bound how long teardown waits for it.
package work
