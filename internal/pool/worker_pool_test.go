package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Run(t *testing.T) {
	p := NewWorkerPool(4, 16)
	p.Start(context.Background())
	defer p.Stop()

	var counter int64
	tasks := make([]func(), 20)
	for i := range tasks {
		tasks[i] = func() {
			atomic.AddInt64(&counter, 1)
		}
	}

	require.NoError(t, p.Run(tasks))

	assert.Equal(t, int64(20), atomic.LoadInt64(&counter))
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	p := NewWorkerPool(1, 4)
	p.Start(context.Background())
	defer p.Stop()

	var ran atomic.Bool
	require.NoError(t, p.Run([]func(){
		func() { panic("boom") },
		func() { ran.Store(true) },
	}))

	// panic 被吞掉，后续任务照常执行
	assert.True(t, ran.Load())
}

func TestWorkerPool_StopIdempotent(t *testing.T) {
	p := NewWorkerPool(2, 4)
	p.Start(context.Background())

	p.Stop()
	assert.NotPanics(t, func() { p.Stop() })
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	p := NewWorkerPool(2, 4)
	p.Start(context.Background())
	p.Stop()

	var err error
	assert.NotPanics(t, func() {
		err = p.Submit(func() {})
	})
	assert.ErrorIs(t, err, ErrPoolStopped)

	// Run 对已停止的池同样快速失败而非悬挂
	err = p.Run([]func(){func() {}})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestWorkerPool_ContextCancelDrainsQueued(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewWorkerPool(1, 16)
	p.Start(ctx)

	release := make(chan struct{})
	var done int64
	tasks := make([]func(), 8)
	tasks[0] = func() {
		<-release
		atomic.AddInt64(&done, 1)
	}
	for i := 1; i < len(tasks); i++ {
		tasks[i] = func() {
			atomic.AddInt64(&done, 1)
		}
	}

	finished := make(chan error, 1)
	go func() {
		finished <- p.Run(tasks)
	}()

	// 第一个任务占住唯一的工作协程，其余任务全部入队后取消上下文，
	// 已入队的任务仍要被执行完，Run 不得悬挂
	require.Eventually(t, func() bool {
		return len(p.taskQueue) == len(tasks)-1
	}, time.Second, 5*time.Millisecond)
	cancel()
	close(release)

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.Equal(t, int64(8), atomic.LoadInt64(&done))
}
