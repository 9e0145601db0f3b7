package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/mq/queue"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/mq/worker"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingIngester returns a canned outcome per path and remembers
// what it processed.
type recordingIngester struct {
	mu       sync.Mutex
	outcomes map[string]model.Outcome
	seen     []string
}

func (r *recordingIngester) Ingest(_ context.Context, e worker.Event) model.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.Path)
	if o, ok := r.outcomes[e.Path]; ok {
		return o
	}
	return model.Accepted()
}

func (r *recordingIngester) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
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

func TestPool(t *testing.T) {
	Convey("Given a worker pool on a live queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ing := &recordingIngester{outcomes: map[string]model.Outcome{
			"skip.fit": model.Skipped("unsupported_sport"),
			"bad.fit":  model.Failed(errors.New("decode blew up")),
		}}
		pool := worker.NewPool(4, q, ing)
		pool.Start(ctx)

		Convey("When events of every outcome kind are enqueued", func() {
			for _, p := range []string{"ok.fit", "skip.fit", "bad.fit"} {
				So(q.Enqueue(ctx, model.FileEvent{Path: p}), ShouldBeTrue)
			}

			Convey("Then all of them are processed, failures included", func() {
				So(waitFor(func() bool { return len(ing.paths()) == 3 }), ShouldBeTrue)
			})

			Convey("And shutdown drains cleanly", func() {
				So(waitFor(func() bool { return q.Len(ctx) == 0 }), ShouldBeTrue)
				So(q.Close(), ShouldBeNil)
				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the queue closes with events still buffered", func() {
			for i := 0; i < 8; i++ {
				So(q.Enqueue(ctx, model.FileEvent{Path: "drain.fit"}), ShouldBeTrue)
			}
			So(q.Close(), ShouldBeNil)

			Convey("Then workers finish the backlog before exiting", func() {
				So(pool.Shutdown(ctx), ShouldBeNil)
				So(len(ing.paths()), ShouldEqual, 8)
			})
		})
	})
}
