package async

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrClosed    = errors.New("async: closed")
	ErrQueueFull = errors.New("async: queue is full")
)

type LooperOptions struct {
	QueueSize int `cfg:"queueSize" def:"1024" validate:"min=1"`
}

// Looper 所有者线程的事件循环，投递的任务只在调用 Poll 或 Run 的 goroutine 上执行
type Looper struct {
	tasks chan func()

	once sync.Once
	done chan struct{}
}

func NewLooper(options *LooperOptions) *Looper {
	size := 1024
	if options != nil && options.QueueSize > 0 {
		size = options.QueueSize
	}
	return &Looper{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post 投递任务，可以在任意 goroutine 调用；队列满时阻塞直到有空位或 Looper 关闭
func (l *Looper) Post(task func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Poll 执行当前已投递的全部任务，不等待，返回执行的任务数
func (l *Looper) Poll() int {
	n := 0
	for {
		select {
		case task := <-l.tasks:
			task()
			n++
		default:
			return n
		}
	}
}

// Run 在当前 goroutine 上循环执行任务，直到 ctx 结束或 Looper 关闭
func (l *Looper) Run(ctx context.Context) error {
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Poll()
			return nil
		}
	}
}

// Wait 执行任务直到 cond 成立或 ctx 结束，cond 在所有者 goroutine 上检查
func (l *Looper) Wait(ctx context.Context, cond func() bool) error {
	for !cond() {
		select {
		case task := <-l.tasks:
			task()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Poll()
			if cond() {
				return nil
			}
			return ErrClosed
		}
	}
	return nil
}

// Close 关闭后 Post 返回 ErrClosed，已投递的任务仍可由 Poll 执行
func (l *Looper) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}
