package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolStopped 表示协程池已停止，不再接受新任务。
var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool 协程池
//
// 限制批量发信的并发协程数量，避免一次大列表投递创建过多协程。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup

	// mu 保护 stopped 与队列关闭的先后顺序：
	// Submit 持读锁检查后入队，Stop 持写锁置位后才关闭队列，
	// 不会出现向已关闭通道发送的竞态。
	mu      sync.RWMutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数
//   - queueSize: 任务队列大小
func NewWorkerPool(maxWorkers, queueSize int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
	}
}

// Start 启动协程池，重复调用只生效一次
//
// ctx 取消时触发 Stop：已入队的任务会被执行完再退出，
// 保证 Run 的等待总能结束。
func (p *WorkerPool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
		go func() {
			<-ctx.Done()
			p.Stop()
		}()
	})
}

// Submit 提交任务
//
// 如果队列已满，会阻塞直到有空位；池已停止时返回 ErrPoolStopped。
func (p *WorkerPool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	p.taskQueue <- task
	return nil
}

// Run 提交一组任务并等待全部完成
//
// 供批量发信使用：每个收件人一个任务，阻塞直到已提交的任务全部执行完毕。
// 池在中途停止时返回 ErrPoolStopped，未提交的任务不会执行。
func (p *WorkerPool) Run(tasks []func()) error {
	var wg sync.WaitGroup

	for _, task := range tasks {
		t := task
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			t()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}

	wg.Wait()
	return nil
}

// Stop 停止协程池并等待在途任务完成
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.taskQueue)
		p.mu.Unlock()

		p.wg.Wait()
	})
}

// worker 工作协程，消费队列直到队列关闭并排空
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for task := range p.taskQueue {
		// 执行任务（捕获 panic）
		func() {
			defer func() {
				_ = recover()
			}()
			task()
		}()
	}
}
