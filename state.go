package work

// WorkerState is the lifecycle state of a queue's worker.
type WorkerState int

const (
	// Waiting for a task or for shutdown.
	StateIdle WorkerState = iota
	// Executing a task.
	StateRunning
	// Shutdown was requested; the in-flight task, if any, is finishing.
	StateShuttingDown
	// The worker has exited. No further tasks will run.
	StateTerminated
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
