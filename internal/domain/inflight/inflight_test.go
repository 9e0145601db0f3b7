package inflight_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh registry", t, func() {
		r := inflight.NewRegistry()

		Convey("When a fingerprint is recorded for the first time", func() {
			seen := r.SeenAndRecord(ctx, "fp-1")

			Convey("Then it was not previously seen", func() {
				So(seen, ShouldBeFalse)
				So(r.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports it as seen", func() {
				So(r.SeenAndRecord(ctx, "fp-1"), ShouldBeTrue)
				So(r.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a fingerprint is unrecorded", func() {
			r.SeenAndRecord(ctx, "fp-1")
			r.Unrecord(ctx, "fp-1")

			Convey("Then it can be recorded fresh again", func() {
				So(r.SeenAndRecord(ctx, "fp-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording a fingerprint that was never seen", func() {
			r.Unrecord(ctx, "ghost")

			Convey("Then nothing breaks", func() {
				So(r.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a registry with a small capacity", t, func() {
		r := inflight.NewRegistry(inflight.WithMaxSize(3))
		for i := 0; i < 3; i++ {
			r.SeenAndRecord(ctx, fmt.Sprintf("fp-%d", i))
		}

		Convey("When one more fingerprint arrives", func() {
			r.SeenAndRecord(ctx, "fp-3")

			Convey("Then the oldest entry is evicted to stay within bounds", func() {
				So(r.Size(), ShouldEqual, 3)
				So(r.SeenAndRecord(ctx, "fp-0"), ShouldBeFalse)
				So(r.SeenAndRecord(ctx, "fp-3"), ShouldBeTrue)
			})
		})
	})

	Convey("Given many goroutines racing on the same fingerprint", t, func() {
		r := inflight.NewRegistry()
		const n = 64

		var winners int64
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				if !r.SeenAndRecord(ctx, "contended") {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one goroutine wins the record", func() {
			So(winners, ShouldEqual, 1)
			So(r.Size(), ShouldEqual, 1)
		})
	})
}
