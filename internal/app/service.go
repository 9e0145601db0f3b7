// Package service wires the watch, queue, worker, and repository
// components into the activity library manager and implements the
// per-file ingestion pipeline the workers run.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/mq/queue"
	workerpool "github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/mq/worker"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/repository"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/adapters/watch"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/decode"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/derive"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/guard"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/inflight"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/logger"
	"github.com/themeaningofmeaning/garmin-fit-analyzer/pkg/metrics"
)

// Skip reasons produced by the pipeline itself, as opposed to the
// sport guard's.
const (
	SkipAlreadyIngested  = "already_ingested"
	SkipConcurrentIngest = "concurrent_ingest"
	SkipPathUpdate       = "path_update"
)

// Service is the library manager. It owns the ingestion pipeline end
// to end and exposes read access to the stored library.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	registry   inflight.Registry
	eventQueue eventqueue.Queue
	deriver    *derive.Deriver
	workerPool *workerpool.Pool
	watcher    *watch.Watcher
	report     *ImportReport

	// Configuration
	watchDir     string
	dbPath       string
	workerCount  int
	queueSize    int
	inflightSize int
	readRetries  int
	retryBackoff time.Duration
	scanExisting bool
	thresholds   derive.Thresholds

	// State
	sessionID string
	started   bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWatchDir sets the directory scanned and watched for FIT files.
func WithWatchDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.watchDir = dir
		}
	}
}

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithStore injects a pre-built store, bypassing WithDBPath.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the file-event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInflightSize sets the capacity of the in-flight fingerprint
// registry.
func WithInflightSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.inflightSize = size
		}
	}
}

// WithReadRetry sets how many times a failed file read is retried and
// the initial backoff between attempts.
func WithReadRetry(retries int, backoff time.Duration) Option {
	return func(s *Service) {
		if retries >= 0 {
			s.readRetries = retries
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// WithScanExisting controls whether files already present in the
// watch directory are ingested on startup.
func WithScanExisting(scan bool) Option {
	return func(s *Service) {
		s.scanExisting = scan
	}
}

// WithThresholds sets the heart-rate and load parameters used for
// metric derivation.
func WithThresholds(t derive.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		watchDir:     "activities",
		dbPath:       "runner_stats.db",
		workerCount:  runtime.NumCPU(),
		queueSize:    4096,
		inflightSize: 50000,
		readRetries:  3,
		retryBackoff: 250 * time.Millisecond,
		scanExisting: true,
		thresholds: derive.Thresholds{
			RestingHR:      60,
			MaxHR:          190,
			ThresholdSpeed: 3.35,
			Load: derive.LoadThresholds{
				Base:         75,
				Overload:     150,
				Overreaching: 300,
			},
		},
		report: NewImportReport(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the components and begins watching the activity
// directory. Each Start opens a fresh import session.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.sessionID = uuid.NewString()
	s.report.Reset()

	openedStore := false
	if s.store == nil {
		store, err := repository.Open(s.dbPath)
		if err != nil {
			return fmt.Errorf("open activity library: %w", err)
		}
		s.store = store
		openedStore = true
	}

	s.registry = inflight.NewRegistry(
		inflight.WithMaxSize(s.inflightSize),
	)
	s.deriver = derive.NewDeriver(s.thresholds)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)

	s.watcher = watch.New(s.watchDir, s.eventQueue,
		watch.WithScanExisting(s.scanExisting),
		watch.WithLogger(s.logger.Named("watch")),
	)
	// Registration happens before the pool starts so a bad watch
	// directory fails Start instead of being logged after the fact.
	// The initial scan buffers into the queue until workers pick it up.
	watchErrs, err := s.watcher.Start(ctx)
	if err != nil {
		_ = s.eventQueue.Close()
		if openedStore {
			_ = s.store.Close()
			s.store = nil
		}
		return fmt.Errorf("watch %s: %w", s.watchDir, err)
	}
	go func() {
		if err := <-watchErrs; err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error(ctx, "watcher stopped", logger.Error(err))
		}
	}()

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)
	s.workerPool.Start(ctx)

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateLibrarySize(n)
	}

	s.started = true
	s.logger.Info(ctx, "library manager started",
		logger.String("sessionID", s.sessionID),
		logger.String("watchDir", s.watchDir),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)

	return nil
}

// Stop drains the pipeline and closes the store. Events already
// dequeued finish their ingestion before workers exit.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	queue, pool, store := s.eventQueue, s.workerPool, s.store
	s.started = false
	s.mu.Unlock()

	// The drain runs without s.mu held. Workers finishing an ingestion
	// read the session id through the service, and would deadlock
	// against a Stop that waits for them while holding the lock.
	s.logger.Info(ctx, "stopping library manager...")

	if queue != nil {
		_ = queue.Close()
	}
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if store != nil {
		_ = store.Close()
	}

	s.logger.Info(ctx, "library manager stopped")
}

// SessionID returns the id of the current import session.
func (s *Service) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Report returns the transient per-session import report.
func (s *Service) Report() *ImportReport {
	return s.report
}

// Ingest runs the full pipeline for one file event and returns its
// tagged outcome. It is safe for concurrent use by the worker pool;
// two events carrying identical bytes are serialized by fingerprint so
// at most one performs the decode and upsert.
func (s *Service) Ingest(ctx context.Context, e model.FileEvent) model.Outcome {
	outcome := s.ingest(ctx, e)
	s.report.Add(e.Path, outcome)
	return outcome
}

func (s *Service) ingest(ctx context.Context, e model.FileEvent) model.Outcome {
	data, err := s.readFile(ctx, e.Path)
	if err != nil {
		return model.Failed(fmt.Errorf("read %s: %w", e.Path, err))
	}

	sum := sha256.Sum256(data)
	file := model.ActivityFile{
		Path:        e.Path,
		Fingerprint: hex.EncodeToString(sum[:]),
		ModTime:     e.ModTime,
	}

	// Another worker is already handling identical content. Its
	// outcome stands for this event too.
	if s.registry.SeenAndRecord(ctx, file.Fingerprint) {
		return model.Skipped(SkipConcurrentIngest)
	}

	if ok, err := s.store.Has(ctx, file.Fingerprint); err != nil {
		s.registry.Unrecord(ctx, file.Fingerprint)
		return model.Failed(fmt.Errorf("library lookup: %w", err))
	} else if ok {
		// Same bytes seen before, possibly at a new path. Refresh
		// the stored path so it tracks the live file.
		if moved, err := s.refreshPath(ctx, file); err != nil {
			s.registry.Unrecord(ctx, file.Fingerprint)
			return model.Failed(fmt.Errorf("refresh path: %w", err))
		} else if moved {
			return model.Skipped(SkipPathUpdate)
		}
		return model.Skipped(SkipAlreadyIngested)
	}

	act, err := decode.Decode(data)
	if err != nil {
		var derr *decode.Error
		if errors.As(err, &derr) {
			metrics.RecordDecodeError(derr.Kind.String())
		}
		// The fingerprint stays recorded: identical bytes will fail
		// identically, so repeat events are not worth re-decoding.
		return model.Failed(fmt.Errorf("decode %s: %w", e.Path, err))
	}

	decision := guard.Classify(act)
	if !decision.Accept {
		return model.Skipped(decision.Reason)
	}
	act.Sport = decision.Category

	derived := s.deriver.Derive(act)

	entry := &model.LibraryEntry{
		Fingerprint: file.Fingerprint,
		Path:        file.Path,
		SessionID:   s.SessionID(),
		ImportedAt:  time.Now().UTC(),
		Summary:     act.Summarize(),
		Derived:     *derived,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		// Transient store failure. Unrecord so a later event for the
		// same bytes can retry the write.
		s.registry.Unrecord(ctx, file.Fingerprint)
		return model.Failed(fmt.Errorf("store %s: %w", e.Path, err))
	}

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateLibrarySize(n)
	}

	s.logger.Debug(ctx, "activity ingested",
		logger.String("path", e.Path),
		logger.String("fingerprint", file.Fingerprint),
		logger.String("sport", act.Sport),
		logger.String("zone", string(derived.Zone)),
	)

	return model.Accepted()
}

// readFile reads the file with bounded retries. Watch events often
// arrive while the device is still flushing the file, so early read
// failures and short files get another chance after a backoff.
func (s *Service) readFile(ctx context.Context, path string) ([]byte, error) {
	backoff := s.retryBackoff
	var lastErr error
	for attempt := 0; attempt <= s.readRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordReadRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// refreshPath updates the stored path of an existing entry when the
// same content reappears elsewhere. Returns true if the path changed.
func (s *Service) refreshPath(ctx context.Context, file model.ActivityFile) (bool, error) {
	entry, err := s.store.Get(ctx, file.Fingerprint)
	if err != nil {
		return false, err
	}
	if entry.Path == file.Path {
		return false, nil
	}
	entry.Path = file.Path
	if err := s.store.Upsert(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

// List returns library entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, f repository.Filter) ([]model.LibraryEntry, error) {
	return s.store.List(ctx, f)
}

// Get returns the entry for a fingerprint.
func (s *Service) Get(ctx context.Context, fingerprint string) (*model.LibraryEntry, error) {
	return s.store.Get(ctx, fingerprint)
}

// Remove deletes an entry by fingerprint and unrecords it so the same
// content can be re-ingested later.
func (s *Service) Remove(ctx context.Context, fingerprint string) error {
	if err := s.store.Remove(ctx, fingerprint); err != nil {
		return err
	}
	s.registry.Unrecord(ctx, fingerprint)
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateLibrarySize(n)
	}
	return nil
}

// Count returns the number of stored activities.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
