package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

type playRecord struct {
	trackID string
	count   int

	// flushed is closed once every record submitted before it was handled.
	flushed chan struct{}
}

// playRecorder hands play statistics to the stats sink on its own goroutine,
// one record at a time in submission order. Sink failures are only logged.
type playRecorder struct {
	logger  *slog.Logger
	sink    ports.PlayStatsSink
	timeout time.Duration

	mu      sync.Mutex
	pending []playRecord
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newPlayRecorder(logger *slog.Logger, sink ports.PlayStatsSink, timeout time.Duration) *playRecorder {
	r := &playRecorder{
		logger:  logger,
		sink:    sink,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// submit queues a play without waiting for the sink.
func (r *playRecorder) submit(play playRecord) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, play)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// flush waits until every play submitted so far reached the sink.
func (r *playRecorder) flush(ctx context.Context) error {
	marker := playRecord{flushed: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.pending = append(r.pending, marker)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drops plays not yet handled and waits for the running one.
func (r *playRecorder) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	dropped := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, p := range dropped {
		if p.flushed != nil {
			close(p.flushed)
		}
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
	<-r.done
}

func (r *playRecorder) run() {
	defer close(r.done)

	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return
			}
			<-r.wake
			continue
		}
		play := r.pending[0]
		r.pending[0] = playRecord{}
		r.pending = r.pending[1:]
		r.mu.Unlock()

		if play.flushed != nil {
			close(play.flushed)
			continue
		}
		r.record(play)
	}
}

func (r *playRecorder) record(play playRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.RecordPlay(ctx, play.trackID); err != nil {
		r.logger.Warn("recording play failed", slog.String("track_id", play.trackID), slog.Any("error", err))
	}
	if err := r.sink.IncrementPlayCount(ctx, play.trackID, play.count); err != nil {
		r.logger.Warn("updating play count failed", slog.String("track_id", play.trackID), slog.Any("error", err))
	}
}
