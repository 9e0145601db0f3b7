package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/repository"
	service "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/app"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func fingerprintOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// startTestService brings up a service over a temp watch dir and an
// isolated store, with retries tightened so failure paths stay fast.
func startTestService(t *testing.T, ctx context.Context) (*service.Service, repository.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	svc := service.New(
		service.WithWatchDir(dir),
		service.WithStore(store),
		service.WithWorkerCount(1),
		service.WithScanExisting(false),
		service.WithReadRetry(0, time.Millisecond),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return svc, store
}

// blockingStore parks the first Has call until released, pinning a
// worker mid-ingestion so shutdown ordering can be observed.
type blockingStore struct {
	repository.Store
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Has(ctx context.Context, fingerprint string) (bool, error) {
	b.once.Do(func() { close(b.reached) })
	<-b.release
	return b.Store.Has(ctx, fingerprint)
}

func TestServiceNew(t *testing.T) {
	Convey("Given a service built with defaults", t, func() {
		So(service.New(), ShouldNotBeNil)
	})

	Convey("Given a service built with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(128),
			service.WithInflightSize(512),
		)
		So(svc, ShouldNotBeNil)
	})
}

func TestServiceIngest(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc, store := startTestService(t, ctx)
		dir := t.TempDir()

		Convey("When the file cannot be read", func() {
			outcome := svc.Ingest(ctx, model.FileEvent{Path: filepath.Join(dir, "gone.fit")})

			Convey("Then the outcome is a failure, not a panic or a skip", func() {
				So(outcome.Kind, ShouldEqual, model.OutcomeFailed)
				So(outcome.Err, ShouldNotBeNil)
			})

			Convey("And it lands in the import issues, not the library", func() {
				So(len(svc.Report().Issues()), ShouldEqual, 1)
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When the file is not a FIT file", func() {
			path := filepath.Join(dir, "bogus.fit")
			So(os.WriteFile(path, []byte("not a fit file at all"), 0o644), ShouldBeNil)

			outcome := svc.Ingest(ctx, model.FileEvent{Path: path})

			Convey("Then decoding fails cleanly", func() {
				So(outcome.Kind, ShouldEqual, model.OutcomeFailed)
			})

			Convey("And the library stays untouched", func() {
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})

			Convey("And a repeat event for the same bytes is a clean skip", func() {
				repeat := svc.Ingest(ctx, model.FileEvent{Path: path})
				So(repeat.Kind, ShouldEqual, model.OutcomeSkipped)
				So(repeat.Reason, ShouldEqual, service.SkipConcurrentIngest)
			})
		})

		Convey("When the content is already in the library", func() {
			data := []byte("previously ingested bytes")
			path := filepath.Join(dir, "seen.fit")
			So(os.WriteFile(path, data, 0o644), ShouldBeNil)

			seeded := &model.LibraryEntry{
				Fingerprint: fingerprintOf(data),
				Path:        path,
				SessionID:   "old-session",
				ImportedAt:  time.Now().UTC(),
				Summary:     model.ActivitySummary{Sport: "running", StartTime: time.Now().UTC()},
				Derived:     model.DerivedSeries{Zone: model.ZoneBase},
			}
			So(store.Upsert(ctx, seeded), ShouldBeNil)

			outcome := svc.Ingest(ctx, model.FileEvent{Path: path})

			Convey("Then the event is skipped without re-decoding", func() {
				So(outcome.Kind, ShouldEqual, model.OutcomeSkipped)
				So(outcome.Reason, ShouldEqual, service.SkipAlreadyIngested)
			})

			Convey("And the stored entry is unchanged", func() {
				got, err := store.Get(ctx, seeded.Fingerprint)
				So(err, ShouldBeNil)
				So(got.SessionID, ShouldEqual, "old-session")
			})
		})

		Convey("When known content reappears at a new path", func() {
			data := []byte("bytes that moved")
			oldPath := filepath.Join(dir, "old.fit")
			newPath := filepath.Join(dir, "renamed.fit")
			So(os.WriteFile(newPath, data, 0o644), ShouldBeNil)

			seeded := &model.LibraryEntry{
				Fingerprint: fingerprintOf(data),
				Path:        oldPath,
				SessionID:   "old-session",
				ImportedAt:  time.Now().UTC(),
				Summary:     model.ActivitySummary{Sport: "running", StartTime: time.Now().UTC()},
				Derived:     model.DerivedSeries{Zone: model.ZoneBase},
			}
			So(store.Upsert(ctx, seeded), ShouldBeNil)

			outcome := svc.Ingest(ctx, model.FileEvent{Path: newPath})

			Convey("Then the entry follows the file to its new path", func() {
				So(outcome.Kind, ShouldEqual, model.OutcomeSkipped)
				So(outcome.Reason, ShouldEqual, service.SkipPathUpdate)

				got, err := store.Get(ctx, seeded.Fingerprint)
				So(err, ShouldBeNil)
				So(got.Path, ShouldEqual, newPath)
			})
		})
	})
}

func TestServiceStartSurfacesWatchFailure(t *testing.T) {
	ctx := context.Background()

	Convey("Given a watch directory that does not exist", t, func() {
		store, err := repository.Open(filepath.Join(t.TempDir(), "library.db"))
		So(err, ShouldBeNil)
		defer store.Close()

		svc := service.New(
			service.WithWatchDir(filepath.Join(t.TempDir(), "missing")),
			service.WithStore(store),
		)

		Convey("Then Start fails instead of running without a watcher", func() {
			So(svc.Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestServiceStopWithInFlightIngestion(t *testing.T) {
	Convey("Given a worker parked inside the store mid-ingestion", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "pending.fit"), []byte("pending bytes"), 0o644), ShouldBeNil)

		inner, err := repository.Open(filepath.Join(t.TempDir(), "library.db"))
		So(err, ShouldBeNil)
		store := &blockingStore{
			Store:   inner,
			reached: make(chan struct{}),
			release: make(chan struct{}),
		}

		svc := service.New(
			service.WithWatchDir(dir),
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithReadRetry(0, time.Millisecond),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		// The initial scan hands pending.fit to the worker, which
		// blocks in Has until released.
		select {
		case <-store.reached:
		case <-time.After(2 * time.Second):
			t.Fatal("worker never reached the store")
		}

		stopped := make(chan struct{})
		go func() {
			svc.Stop(context.Background())
			close(stopped)
		}()

		Convey("Then the service stays responsive while Stop drains", func() {
			got := make(chan string, 1)
			go func() { got <- svc.SessionID() }()
			select {
			case id := <-got:
				So(id, ShouldNotBeEmpty)
			case <-time.After(time.Second):
				t.Fatal("SessionID blocked while Stop was draining")
			}

			Convey("And Stop returns once the ingestion finishes", func() {
				close(store.release)
				select {
				case <-stopped:
				case <-time.After(3 * time.Second):
					t.Fatal("Stop did not return after the worker resumed")
				}
			})
		})
	})
}

func TestServiceQueries(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over a seeded library", t, func() {
		svc, store := startTestService(t, ctx)
		start := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

		entry := &model.LibraryEntry{
			Fingerprint: "fp-query",
			Path:        "/activities/q.fit",
			SessionID:   "s",
			ImportedAt:  time.Now().UTC(),
			Summary:     model.ActivitySummary{Sport: "running", StartTime: start},
			Derived:     model.DerivedSeries{Load: 90, Zone: model.ZoneBase},
		}
		So(store.Upsert(ctx, entry), ShouldBeNil)

		Convey("Then List surfaces the entry", func() {
			entries, err := svc.List(ctx, repository.Filter{Zone: model.ZoneBase})
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].Fingerprint, ShouldEqual, "fp-query")
		})

		Convey("Then Get finds it and Count agrees", func() {
			got, err := svc.Get(ctx, "fp-query")
			So(err, ShouldBeNil)
			So(got.Summary.StartTime.Equal(start), ShouldBeTrue)

			n, err := svc.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("When the entry is removed", func() {
			So(svc.Remove(ctx, "fp-query"), ShouldBeNil)

			Convey("Then it is gone and removing again reports not found", func() {
				_, err := svc.Get(ctx, "fp-query")
				So(err, ShouldEqual, repository.ErrNotFound)
				So(svc.Remove(ctx, "fp-query"), ShouldEqual, repository.ErrNotFound)
			})
		})
	})
}
