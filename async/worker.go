package async

import (
	"sync"
	"time"

	"github.com/hatlonely/odb/log"
	"github.com/hatlonely/odb/log/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

type WorkerOptions struct {
	// QueueSize 等待执行的任务数上限，队列满时 Submit 返回 ErrQueueFull
	QueueSize int `cfg:"queueSize" def:"1024" validate:"min=1"`

	// CloseTimeout 关闭时等待正在执行的任务结束的时间
	CloseTimeout time.Duration `cfg:"closeTimeout" def:"5s"`
}

// Worker 单个后台 goroutine，按提交顺序依次执行任务
type Worker struct {
	queue        chan func()
	pool         *ants.Pool
	logger       logger.Logger
	closeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewWorker(options *WorkerOptions, l logger.Logger) (*Worker, error) {
	if options == nil {
		options = &WorkerOptions{}
	}
	if l == nil {
		l = log.Default()
	}
	queueSize := options.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	closeTimeout := options.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 5 * time.Second
	}

	w := &Worker{
		queue:        make(chan func(), queueSize),
		logger:       l.WithGroup("worker"),
		closeTimeout: closeTimeout,
		stop:         make(chan struct{}),
	}

	// 容量为 1 的池保证同一时刻只有一个任务在执行
	pool, err := ants.NewPool(1, ants.WithPanicHandler(func(v any) {
		w.logger.Error("worker task panic", "panic", v)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "ants.NewPool failed")
	}
	w.pool = pool

	w.wg.Add(1)
	go w.dispatch()

	return w, nil
}

func (w *Worker) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.queue:
			// Submit 在池满时阻塞，任务因此按入队顺序执行
			if err := w.pool.Submit(task); err != nil {
				w.logger.Warn("submit task failed", "error", err.Error())
			}
		case <-w.stop:
			return
		}
	}
}

// Submit 提交任务，不阻塞调用方。队列满时返回 ErrQueueFull，关闭后返回 ErrClosed
func (w *Worker) Submit(task func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len 排队中的任务数
func (w *Worker) Len() int {
	return len(w.queue)
}

// Close 停止接收任务，丢弃排队中的任务并等待正在执行的任务结束
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	if dropped := len(w.queue); dropped > 0 {
		w.logger.Warn("worker closed with queued tasks", "dropped", dropped)
	}
	return errors.Wrap(w.pool.ReleaseTimeout(w.closeTimeout), "release worker pool failed")
}
