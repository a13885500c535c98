package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hatlonely/odb/log"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func TestLooper(t *testing.T) {
	Convey("测试 Poll 只在调用方执行任务", t, func() {
		l := NewLooper(&LooperOptions{QueueSize: 4})
		defer l.Close()

		var order []int
		So(l.Post(func() { order = append(order, 1) }), ShouldBeNil)
		So(l.Post(func() { order = append(order, 2) }), ShouldBeNil)
		So(order, ShouldBeEmpty)

		So(l.Poll(), ShouldEqual, 2)
		So(order, ShouldResemble, []int{1, 2})
		So(l.Poll(), ShouldEqual, 0)
	})

	Convey("测试 Wait 等待条件成立", t, func() {
		l := NewLooper(nil)
		defer l.Close()

		done := false
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = l.Post(func() { done = true })
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		So(l.Wait(ctx, func() bool { return done }), ShouldBeNil)
		So(done, ShouldBeTrue)
	})

	Convey("测试 Wait 超时", t, func() {
		l := NewLooper(nil)
		defer l.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		So(l.Wait(ctx, func() bool { return false }), ShouldEqual, context.DeadlineExceeded)
	})

	Convey("测试关闭", t, func() {
		l := NewLooper(nil)
		ran := false
		So(l.Post(func() { ran = true }), ShouldBeNil)
		l.Close()
		l.Close()

		So(l.Post(func() {}), ShouldEqual, ErrClosed)
		So(l.Run(context.Background()), ShouldBeNil)
		So(ran, ShouldBeTrue)
	})
}

func TestWorker(t *testing.T) {
	t.Run("tasks run in submission order", func(t *testing.T) {
		w, err := NewWorker(&WorkerOptions{QueueSize: 16}, log.Discard())
		require.NoError(t, err)
		defer w.Close()

		var mu sync.Mutex
		var order []int
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			i := i
			wg.Add(1)
			require.NoError(t, w.Submit(func() {
				defer wg.Done()
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			}))
		}
		wg.Wait()
		require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	})

	t.Run("panic does not stop the worker", func(t *testing.T) {
		w, err := NewWorker(nil, log.Discard())
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, w.Submit(func() { panic("boom") }))
		done := make(chan struct{})
		require.NoError(t, w.Submit(func() { close(done) }))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not run task after panic")
		}
	})

	t.Run("submit does not block when the queue is full", func(t *testing.T) {
		w, err := NewWorker(&WorkerOptions{QueueSize: 1}, log.Discard())
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		require.NoError(t, w.Submit(func() {
			close(started)
			<-release
		}))
		<-started

		full := false
		deadline := time.Now().Add(time.Second)
		for !full && time.Now().Before(deadline) {
			switch err := w.Submit(func() {}); {
			case err == nil:
			case errors.Is(err, ErrQueueFull):
				full = true
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.True(t, full)

		close(release)
		require.NoError(t, w.Close())
	})

	t.Run("submit after close", func(t *testing.T) {
		w, err := NewWorker(nil, log.Discard())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		require.ErrorIs(t, w.Submit(func() {}), ErrClosed)
	})
}
