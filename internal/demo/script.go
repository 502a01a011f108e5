// Package demo replays a scripted sequence of queue operations. It exists to
// exercise a work.Queue the way an application would.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	work "git.sr.ht/~sircmpwn/serialwork"
	"git.sr.ht/~sircmpwn/serialwork/internal/config"
)

// Runner drives a queue through a script.
type Runner struct {
	Queue *work.Queue
	Log   *slog.Logger

	pushed int
}

// Run executes steps in order. It stops early, returning ctx.Err(), if ctx
// is cancelled during a sleep step. It does not shut the queue down.
func (r *Runner) Run(ctx context.Context, steps []config.Step) error {
	if r.Log == nil {
		r.Log = slog.Default()
	}
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch s.Action {
		case config.ActionPush:
			if err := r.push(s); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case config.ActionClear:
			r.Log.Info("clearing task queue")
			r.Queue.Clear()
		case config.ActionSleep:
			if err := sleep(ctx, s.Duration); err != nil {
				return err
			}
		default:
			return fmt.Errorf("step %d: unknown action %q", i, s.Action)
		}
	}
	return nil
}

func (r *Runner) push(s config.Step) error {
	r.pushed++
	n := r.pushed
	log := r.Log.With("task", n, "name", s.Name)

	task := work.NewTask(func() {
		log.Info("task running")
		time.Sleep(s.Duration)
		if s.Message != "" {
			log.Info(s.Message)
		}
	}).After(func(_ context.Context, err error) {
		if err != nil {
			log.Warn("task failed", "error", err)
		}
	})
	task.Metadata["name"] = s.Name
	task.Metadata["number"] = n

	log.Info("pushing task")
	return r.Queue.Enqueue(task)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
