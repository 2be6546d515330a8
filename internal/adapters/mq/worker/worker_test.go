package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/vouch/internal/adapters/mq/queue"
	"github.com/okian/vouch/internal/adapters/mq/worker"
	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []model.Click
	err      error
}

func (f *fakeRecorder) RecordClick(_ context.Context, c model.Click) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, c)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded)
}

func TestWorkerRecordsClicks(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16), queue.WithBufferSize(16))
		rec := &fakeRecorder{}
		w := worker.NewClickWorker(q, rec, worker.WithName("test-worker"))

		go w.Run(ctx)

		Convey("When clicks are enqueued", func() {
			So(q.Enqueue(ctx, model.Click{ID: "1", Source: "a", Target: "b"}), ShouldBeTrue)
			So(q.Enqueue(ctx, model.Click{ID: "2", Source: "b", Target: "a"}), ShouldBeTrue)

			Convey("Then they are recorded", func() {
				So(waitFor(func() bool { return rec.count() == 2 }), ShouldBeTrue)
			})
		})

		Convey("When the worker is shut down", func() {
			err := w.Shutdown(ctx)

			Convey("Then shutdown completes cleanly", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestWorkerSurvivesRecordErrors(t *testing.T) {
	Convey("Given a recorder that fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16), queue.WithBufferSize(16))
		rec := &fakeRecorder{err: errors.New("store down")}
		w := worker.NewClickWorker(q, rec)

		go w.Run(ctx)

		Convey("When a click fails to record", func() {
			So(q.Enqueue(ctx, model.Click{ID: "1", Source: "a", Target: "b"}), ShouldBeTrue)

			Convey("Then the worker keeps draining subsequent events", func() {
				rec.mu.Lock()
				rec.err = nil
				rec.mu.Unlock()
				So(q.Enqueue(ctx, model.Click{ID: "2", Source: "b", Target: "a"}), ShouldBeTrue)
				So(waitFor(func() bool { return rec.count() == 1 }), ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64), queue.WithBufferSize(64))
		rec := &fakeRecorder{}
		pool := worker.NewWorkerPool(3, q, rec)
		pool.Start(ctx)

		Convey("When many clicks arrive", func() {
			for i := 0; i < 20; i++ {
				So(q.Enqueue(ctx, model.Click{Source: "a", Target: "b"}), ShouldBeTrue)
			}

			Convey("Then all are recorded across workers", func() {
				So(waitFor(func() bool { return rec.count() == 20 }), ShouldBeTrue)
				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
