package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

// SaveFunc performs one durable write of queue state.
// It is expected to capture the state it writes when it is created.
type SaveFunc func(ctx context.Context) error

// SaveCoordinatorConfig holds the timing policy of a SaveCoordinator.
type SaveCoordinatorConfig struct {
	// DebounceWindow is how long a metadata save waits for a newer one
	DebounceWindow time.Duration

	// WriteTimeout bounds each individual write
	WriteTimeout time.Duration
}

// DefaultSaveCoordinatorConfig returns the production timing policy.
func DefaultSaveCoordinatorConfig() SaveCoordinatorConfig {
	return SaveCoordinatorConfig{
		DebounceWindow: 500 * time.Millisecond,
		WriteTimeout:   10 * time.Second,
	}
}

// SaveStats counts what the coordinator did with the writes it was given.
type SaveStats struct {
	Executed   int // writes that ran to completion, successfully or not
	Failed     int // writes that returned an error or panicked
	Superseded int // debounced writes dropped in favour of a newer write
}

type saveKind string

const (
	saveKindMetadata saveKind = "metadata"
	saveKindFull     saveKind = "full"
	saveKindRepeat   saveKind = "repeat"
	saveKindBarrier  saveKind = "barrier"
)

type saveJob struct {
	kind  saveKind
	write SaveFunc
	done  chan error // nil for fire-and-forget jobs
}

// SaveCoordinator serialises and debounces writes of a single queue.
//
// Every write runs on one consumer goroutine in submission order, so at most
// one write is in flight and writes are totally ordered. Metadata saves are
// debounced: only the last writer scheduled within the window runs. Full and
// repeat-mode saves skip the window and replace any pending metadata save,
// since they write the same metadata captured at a later point.
type SaveCoordinator struct {
	logger *slog.Logger
	cfg    SaveCoordinatorConfig

	mu       sync.Mutex
	pending  SaveFunc // debounced metadata writer not yet handed to the consumer
	deadline time.Time
	timer    *time.Timer
	jobs     []saveJob
	closed   bool
	stats    SaveStats

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSaveCoordinator creates a coordinator and starts its consumer goroutine.
// Call Close to stop it.
func NewSaveCoordinator(logger *slog.Logger, cfg SaveCoordinatorConfig) *SaveCoordinator {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultSaveCoordinatorConfig().DebounceWindow
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultSaveCoordinatorConfig().WriteTimeout
	}

	c := &SaveCoordinator{
		logger: logger,
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// ScheduleMetadataSave debounces a metadata-only write. A writer scheduled
// while another is pending replaces it and restarts the window.
func (c *SaveCoordinator) ScheduleMetadataSave(write SaveFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("metadata save dropped, coordinator closed")
		return
	}

	if c.pending != nil {
		c.stats.Superseded++
	}
	c.pending = write
	c.deadline = time.Now().Add(c.cfg.DebounceWindow)

	// An armed timer that fires before the new deadline re-arms itself.
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.DebounceWindow, c.onDebounceTimer)
	} else {
		c.timer.Reset(c.cfg.DebounceWindow)
	}
}

func (c *SaveCoordinator) onDebounceTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.pending == nil {
		return
	}

	if remaining := time.Until(c.deadline); remaining > 0 {
		c.timer.Reset(remaining)
		return
	}

	write := c.pending
	c.pending = nil
	c.enqueueLocked(saveJob{kind: saveKindMetadata, write: write})
}

// SaveFullQueueImmediate cancels any pending metadata save, queues a full
// write and waits for it. Waiting ends early if ctx is done; the write still
// runs in that case.
func (c *SaveCoordinator) SaveFullQueueImmediate(ctx context.Context, write SaveFunc) error {
	done, err := c.submit(saveKindFull, write, true)
	if err != nil {
		return err
	}
	return c.await(ctx, done)
}

// SaveFullQueueInBackground is the fire-and-forget form of SaveFullQueueImmediate.
// Failures are logged.
func (c *SaveCoordinator) SaveFullQueueInBackground(write SaveFunc) {
	if _, err := c.submit(saveKindFull, write, false); err != nil {
		c.logger.Debug("full save dropped", slog.Any("error", err))
	}
}

// SaveRepeatModeImmediate queues a metadata write without debouncing. It
// replaces a pending debounced save but never waits for, or cancels, queued
// full writes.
func (c *SaveCoordinator) SaveRepeatModeImmediate(write SaveFunc) {
	if _, err := c.submit(saveKindRepeat, write, false); err != nil {
		c.logger.Debug("repeat mode save dropped", slog.Any("error", err))
	}
}

// FlushPendingSavesOnShutdown runs a debounced save that has not fired yet
// and waits until every write queued before the call has finished.
func (c *SaveCoordinator) FlushPendingSavesOnShutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrCoordinatorClosed
	}

	job := saveJob{kind: saveKindBarrier, done: make(chan error, 1)}
	if c.pending != nil {
		job.kind = saveKindMetadata
		job.write = c.pending
		c.pending = nil
		c.timer.Stop()
	}
	c.enqueueLocked(job)
	c.mu.Unlock()

	return c.await(ctx, job.done)
}

// HasPendingMetadataSave reports whether a debounced save is waiting for its window to end.
func (c *SaveCoordinator) HasPendingMetadataSave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Stats returns a copy of the coordinator counters.
func (c *SaveCoordinator) Stats() SaveStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the debounce timer, drops a pending debounced save, runs the
// writes already queued and stops the consumer. It is safe to call more than once.
func (c *SaveCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.pending != nil {
		c.logger.Debug("dropping pending metadata save on close")
		c.pending = nil
		c.stats.Superseded++
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
}

func (c *SaveCoordinator) submit(kind saveKind, write SaveFunc, wait bool) (chan error, error) {
	if write == nil {
		return nil, domain.NewValidationError("write", nil, "save function is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrCoordinatorClosed
	}

	if c.pending != nil {
		c.pending = nil
		c.timer.Stop()
		c.stats.Superseded++
	}

	job := saveJob{kind: kind, write: write}
	if wait {
		job.done = make(chan error, 1)
	}
	c.enqueueLocked(job)
	return job.done, nil
}

func (c *SaveCoordinator) await(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SaveCoordinator) enqueueLocked(job saveJob) {
	c.jobs = append(c.jobs, job)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// run is the single consumer of the job queue.
func (c *SaveCoordinator) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.wake:
			c.drain()
		case <-c.stop:
			c.drain()
			return
		}
	}
}

func (c *SaveCoordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.jobs) == 0 {
			c.mu.Unlock()
			return
		}
		job := c.jobs[0]
		c.jobs[0] = saveJob{}
		c.jobs = c.jobs[1:]
		c.mu.Unlock()

		c.execute(job)
	}
}

func (c *SaveCoordinator) execute(job saveJob) {
	if job.write == nil {
		if job.done != nil {
			job.done <- nil
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	start := time.Now()
	err := c.safeWrite(ctx, job.write)
	cancel()

	c.mu.Lock()
	c.stats.Executed++
	if err != nil {
		c.stats.Failed++
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("queue save failed",
			slog.String("kind", string(job.kind)),
			slog.Any("error", err))
	} else {
		c.logger.Debug("queue saved",
			slog.String("kind", string(job.kind)),
			slog.Duration("took", time.Since(start)))
	}

	if job.done != nil {
		job.done <- err
	}
}

func (c *SaveCoordinator) safeWrite(ctx context.Context, write SaveFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save panicked: %v", r)
		}
	}()
	return write(ctx)
}
