package service

import (
	"container/heap"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// ImageLoaderConfig holds ImageLoader settings.
type ImageLoaderConfig struct {
	// Workers is the number of decode goroutines
	Workers int

	// ShutdownTimeout bounds how long Dispose waits for workers
	ShutdownTimeout time.Duration

	// LowPriorityWorkers runs decode goroutines on OS threads with a raised nice value
	LowPriorityWorkers bool
}

// DefaultImageLoaderConfig returns the production settings.
func DefaultImageLoaderConfig() ImageLoaderConfig {
	return ImageLoaderConfig{
		Workers:            2,
		ShutdownTimeout:    2 * time.Second,
		LowPriorityWorkers: true,
	}
}

// ImageLoader decodes artwork on a small pool of background workers.
//
// Requests wait in a priority heap: top priority first, then requests for
// paths the UI reports as visible, then background prefetches. The heap and
// the visible set have separate locks and are never held together.
type ImageLoader struct {
	logger  *slog.Logger
	cfg     ImageLoaderConfig
	decoder ports.ImageDecoder
	bus     ports.EventBus

	queueMu sync.Mutex
	ready   *sync.Cond
	pending imageHeap
	seq     uint64
	closed  bool

	visibleMu sync.Mutex
	visible   map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	disposeOnce sync.Once
	disposeErr  error
}

// NewImageLoader creates a loader and starts its workers. bus may be nil.
func NewImageLoader(logger *slog.Logger, cfg ImageLoaderConfig, decoder ports.ImageDecoder, bus ports.EventBus) *ImageLoader {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultImageLoaderConfig().Workers
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultImageLoaderConfig().ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &ImageLoader{
		logger:  logger,
		cfg:     cfg,
		decoder: decoder,
		bus:     bus,
		visible: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	l.ready = sync.NewCond(&l.queueMu)

	for i := 0; i < cfg.Workers; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}

	return l
}

// LoadImage queues a decode of path scaled to fit width x height.
//
// An empty path resolves at once with no image. Top priority requests run
// before everything else; a request is visible if isVisible is set or the
// path was marked with SetItemVisibility.
func (l *ImageLoader) LoadImage(path string, width, height int, highQuality, isVisible, isTopPriority bool) *ImageFuture {
	future := newImageFuture()
	if path == "" {
		future.resolve(nil, nil)
		return future
	}

	visible := isVisible || l.isMarkedVisible(path)

	base := domain.ImagePriorityBackground
	switch {
	case isTopPriority:
		base = domain.ImagePriorityTop
	case isVisible:
		base = domain.ImagePriorityVisible
	}
	priority := base
	if visible && priority > domain.ImagePriorityVisible {
		priority = domain.ImagePriorityVisible
	}

	l.queueMu.Lock()
	if l.closed {
		l.queueMu.Unlock()
		future.resolve(nil, domain.ErrLoaderClosed)
		return future
	}
	l.seq++
	heap.Push(&l.pending, &imageRequest{
		path:        path,
		width:       width,
		height:      height,
		highQuality: highQuality,
		priority:    priority,
		base:        base,
		visible:     visible,
		seq:         l.seq,
		future:      future,
	})
	l.ready.Signal()
	l.queueMu.Unlock()

	return future
}

// SetItemVisibility marks or unmarks path as on screen and re-prioritises
// its queued requests.
func (l *ImageLoader) SetItemVisibility(path string, isVisible bool) {
	if path == "" {
		return
	}

	l.visibleMu.Lock()
	if isVisible {
		l.visible[path] = struct{}{}
	} else {
		delete(l.visible, path)
	}
	l.visibleMu.Unlock()

	l.queueMu.Lock()
	defer l.queueMu.Unlock()

	changed := false
	for _, req := range l.pending {
		if req.path != path {
			continue
		}
		changed = true
		req.visible = isVisible
		if isVisible {
			req.priority = min(req.base, domain.ImagePriorityVisible)
		} else {
			req.priority = req.base
		}
	}
	if changed {
		heap.Init(&l.pending)
	}
}

func (l *ImageLoader) isMarkedVisible(path string) bool {
	l.visibleMu.Lock()
	defer l.visibleMu.Unlock()
	_, ok := l.visible[path]
	return ok
}

// CancelPendingLoads resolves every request that has not started with
// domain.ErrImageLoadCancelled and returns how many there were. Decodes
// already running are not interrupted.
func (l *ImageLoader) CancelPendingLoads() int {
	l.queueMu.Lock()
	dropped := l.pending
	l.pending = nil
	l.queueMu.Unlock()

	for _, req := range dropped {
		req.future.resolve(nil, domain.ErrImageLoadCancelled)
	}
	if len(dropped) > 0 {
		l.logger.Debug("cancelled pending image loads", slog.Int("count", len(dropped)))
	}
	return len(dropped)
}

// Pending returns the number of requests waiting for a worker.
func (l *ImageLoader) Pending() int {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	return len(l.pending)
}

// Dispose stops the workers. Pending requests resolve with
// domain.ErrLoaderClosed and running decodes see a cancelled context. If the
// workers do not stop within the shutdown timeout Dispose returns
// domain.ErrShutdownTimeout instead of waiting longer. Later calls return
// the first result.
func (l *ImageLoader) Dispose() error {
	l.disposeOnce.Do(func() {
		l.queueMu.Lock()
		l.closed = true
		dropped := l.pending
		l.pending = nil
		l.ready.Broadcast()
		l.queueMu.Unlock()

		for _, req := range dropped {
			req.future.resolve(nil, domain.ErrLoaderClosed)
		}
		l.cancel()

		stopped := make(chan struct{})
		go func() {
			l.wg.Wait()
			close(stopped)
		}()

		timer := time.NewTimer(l.cfg.ShutdownTimeout)
		defer timer.Stop()
		select {
		case <-stopped:
		case <-timer.C:
			l.logger.Warn("image workers did not stop in time",
				slog.Duration("timeout", l.cfg.ShutdownTimeout))
			l.disposeErr = domain.ErrShutdownTimeout
		}
	})
	return l.disposeErr
}

func (l *ImageLoader) worker(id int) {
	defer l.wg.Done()

	if l.cfg.LowPriorityWorkers {
		if err := lowerThreadPriority(); err != nil {
			l.logger.Debug("could not lower image worker priority",
				slog.Int("worker", id),
				slog.Any("error", err))
		}
	}

	for {
		req := l.next()
		if req == nil {
			return
		}
		l.process(req)
	}
}

// next blocks until a request is available. It returns nil once the loader is closed.
func (l *ImageLoader) next() *imageRequest {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()

	for len(l.pending) == 0 && !l.closed {
		l.ready.Wait()
	}
	if l.closed {
		return nil
	}
	return heap.Pop(&l.pending).(*imageRequest)
}

func (l *ImageLoader) process(req *imageRequest) {
	img, err := l.decode(req)
	if err != nil {
		l.logger.Debug("image load failed",
			slog.String("path", req.path),
			slog.Any("error", err))
		if l.bus != nil {
			l.bus.Publish(domain.NewImageLoadFailedEvent(req.path, err))
		}
	}
	req.future.resolve(img, err)
}

func (l *ImageLoader) decode(req *imageRequest) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("decoding %s panicked: %v", req.path, r)
		}
	}()
	return l.decoder.DecodeAndResize(l.ctx, req.path, req.width, req.height, req.highQuality)
}
