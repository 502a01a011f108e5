package work

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	calls := 0
	task := NewTask(func() {
		calls++
	})
	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.False(t, task.Done())

	err := task.Run(context.TODO())
	assert.Nil(t, err)
	assert.True(t, task.Done())
	assert.Equal(t, 1, calls)

	err = task.Run(context.TODO())
	assert.Equal(t, ErrAlreadyComplete, err)
	assert.Equal(t, 1, calls)
}

func TestRunPanic(t *testing.T) {
	task := NewTask(func() {
		panic("boom")
	})

	err := task.Run(context.TODO())
	var perr *PanicError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Equal(t, "task panicked: boom", err.Error())
	assert.Nil(t, perr.Unwrap())
	assert.True(t, task.Done())
}

func TestPanicErrorUnwrap(t *testing.T) {
	task := NewTask(func() {
		panic(io.EOF)
	})

	err := task.Run(context.TODO())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestAfter(t *testing.T) {
	var (
		afterCalls int
		afterErr   error
	)
	task := NewTask(func() {}).After(func(ctx context.Context, err error) {
		afterCalls++
		afterErr = err
	})

	assert.Nil(t, task.Run(context.TODO()))
	assert.Equal(t, 1, afterCalls)
	assert.Nil(t, afterErr)

	task.Run(context.TODO())
	assert.Equal(t, 1, afterCalls)
}

func TestAfterFailure(t *testing.T) {
	var afterErr error
	task := NewTask(func() {
		panic("boom")
	}).After(func(ctx context.Context, err error) {
		afterErr = err
	})

	err := task.Run(context.TODO())
	assert.Equal(t, err, afterErr)
	var perr *PanicError
	assert.True(t, errors.As(afterErr, &perr))
}

func TestAfterPanics(t *testing.T) {
	ran := false
	task := NewTask(func() {
		ran = true
	}).After(func(ctx context.Context, err error) {
		panic("after")
	})

	err := task.Run(context.TODO())
	assert.True(t, ran)
	var perr *PanicError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "after", perr.Value)
}

func TestRunGoexit(t *testing.T) {
	afterErr := make(chan error, 1)
	task := NewTask(func() {
		runtime.Goexit()
	}).After(func(ctx context.Context, err error) {
		afterErr <- err
	})

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		task.Run(context.TODO())
		t.Error("Run returned after runtime.Goexit")
	}()
	<-exited

	assert.ErrorIs(t, <-afterErr, ErrTaskExited)
	assert.True(t, task.Done())
}

func TestAfterAssignedTwice(t *testing.T) {
	task := NewTask(func() {}).After(func(ctx context.Context, err error) {})
	assert.Panics(t, func() {
		task.After(func(ctx context.Context, err error) {})
	})
}

func TestMetadata(t *testing.T) {
	task := NewTask(func() {})
	task.Metadata["owner"] = "test"
	assert.Equal(t, "test", task.Metadata["owner"])
	assert.NotEqual(t, task.ID, NewTask(func() {}).ID)
}
