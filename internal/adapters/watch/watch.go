// Package watch observes the configured activity directory and feeds
// file events into the ingestion queue.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/logger"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/metrics"
)

const fitExtension = ".fit"

// Sink receives observed file events. Backpressure (a false return) is
// tolerated: a dropped event re-converges on the next scan because
// ingestion is fingerprint-idempotent.
type Sink interface {
	Enqueue(ctx context.Context, e model.FileEvent) bool
}

// Watcher observes a directory tree for FIT file arrivals.
type Watcher struct {
	root         string
	sink         Sink
	scanExisting bool
	logger       logger.Logger
}

// Option applies a configuration option to the Watcher.
type Option func(*Watcher)

// WithScanExisting controls whether Run enqueues files already present
// under the root before waiting for events. On by default so a restart
// converges with files that arrived while the process was down.
func WithScanExisting(scan bool) Option {
	return func(w *Watcher) { w.scanExisting = scan }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher rooted at dir.
func New(dir string, sink Sink, opts ...Option) *Watcher {
	w := &Watcher{
		root:         dir,
		sink:         sink,
		scanExisting: true,
		logger:       logger.Get().Named("watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the tree until ctx is canceled. The event wait is the
// only indefinite block in the pipeline and is released by ctx.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(ctx, fsw, w.root); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching directory", logger.String("dir", w.root))
	return w.loop(ctx, fsw)
}

// Start registers the watch tree before returning, so an unusable root
// fails the caller's startup instead of being logged from a goroutine,
// then runs the event loop in the background. The returned channel
// carries the loop's exit error.
func (w *Watcher) Start(ctx context.Context) (<-chan error, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.addTree(ctx, fsw, w.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.logger.Info(ctx, "watching directory", logger.String("dir", w.root))

	errc := make(chan error, 1)
	go func() {
		defer fsw.Close()
		errc <- w.loop(ctx, fsw)
	}()
	return errc, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// Created then removed before we could look; nothing to do.
		return
	}
	if info.IsDir() {
		// New subdirectory: watch it and pick up anything dropped in
		// before the watch was registered.
		if err := w.addTree(ctx, fsw, ev.Name); err != nil {
			w.logger.Warn(ctx, "failed to watch new directory",
				logger.String("dir", ev.Name), logger.Error(err))
		}
		return
	}
	w.emit(ctx, ev.Name, info)
}

// addTree registers watches for dir and every subdirectory, emitting
// existing FIT files along the way when scanning is enabled.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if w.scanExisting {
			if info, err := d.Info(); err == nil {
				w.emit(ctx, path, info)
			}
		}
		return nil
	})
}

func (w *Watcher) emit(ctx context.Context, path string, info fs.FileInfo) {
	if !strings.EqualFold(filepath.Ext(path), fitExtension) {
		return
	}
	metrics.RecordFileObserved()
	ok := w.sink.Enqueue(ctx, model.FileEvent{Path: path, ModTime: info.ModTime()})
	if !ok {
		w.logger.Warn(ctx, "event dropped by queue", logger.String("path", path))
	}
}
