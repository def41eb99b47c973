package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// MemoryMonitorConfig holds MemoryMonitor settings.
type MemoryMonitorConfig struct {
	// Interval between samples
	Interval time.Duration

	// HighThreshold is the memory load, in percent, at or above which pressure is high
	HighThreshold float64

	// SampleTimeout bounds a single sampler call
	SampleTimeout time.Duration
}

// DefaultMemoryMonitorConfig returns the production settings.
func DefaultMemoryMonitorConfig() MemoryMonitorConfig {
	return MemoryMonitorConfig{
		Interval:      5 * time.Second,
		HighThreshold: 80,
		SampleTimeout: time.Second,
	}
}

// ResponderID identifies a registration with a MemoryMonitor.
type ResponderID uint64

type responderEntry struct {
	id        ResponderID
	responder ports.MemoryPressureResponder
	active    bool
}

// MemoryMonitor samples system memory and tells registered responders when
// the pressure state changes. Responders are only notified on transitions.
type MemoryMonitor struct {
	logger  *slog.Logger
	cfg     MemoryMonitorConfig
	sampler ports.MemorySampler
	bus     ports.EventBus

	mu         sync.Mutex
	responders []*responderEntry
	nextID     ResponderID
	state      domain.PressureState
	lastLoad   float64

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// NewMemoryMonitor creates a monitor. It does not sample until Start or Sample is called.
// bus may be nil.
func NewMemoryMonitor(logger *slog.Logger, cfg MemoryMonitorConfig, sampler ports.MemorySampler, bus ports.EventBus) *MemoryMonitor {
	def := DefaultMemoryMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = def.HighThreshold
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = def.SampleTimeout
	}
	return &MemoryMonitor{
		logger:  logger,
		cfg:     cfg,
		sampler: sampler,
		bus:     bus,
		state:   domain.PressureNormal,
	}
}

// Register adds a responder. The monitor holds the responder only until it
// is unregistered; it never closes or otherwise manages it.
func (m *MemoryMonitor) Register(r ports.MemoryPressureResponder) ResponderID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.responders = append(m.responders, &responderEntry{
		id:        m.nextID,
		responder: r,
		active:    true,
	})
	return m.nextID
}

// Unregister stops notifications for id. The entry is dropped during the
// next notification pass.
func (m *MemoryMonitor) Unregister(id ResponderID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.responders {
		if e.id == id {
			e.active = false
			e.responder = nil
		}
	}
}

// ResponderCount returns the number of registrations, including ones
// unregistered but not yet dropped.
func (m *MemoryMonitor) ResponderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responders)
}

// State returns the last observed pressure state.
func (m *MemoryMonitor) State() domain.PressureState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastLoad returns the last sampled memory load in percent.
func (m *MemoryMonitor) LastLoad() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLoad
}

// Start begins periodic sampling. Calling Start on a running monitor does nothing.
func (m *MemoryMonitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)

	m.logger.Debug("memory monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Float64("threshold", m.cfg.HighThreshold))
}

// Stop ends sampling and waits for the sampling goroutine to exit.
func (m *MemoryMonitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop, m.done = nil, nil
}

func (m *MemoryMonitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.Sample(ctx); err != nil && ctx.Err() == nil {
			m.logger.Debug("memory sample failed", slog.Any("error", err))
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Sample takes one reading and notifies responders if the state changed.
func (m *MemoryMonitor) Sample(ctx context.Context) (domain.PressureState, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, m.cfg.SampleTimeout)
	load, err := m.sampler.MemoryLoadPercent(sampleCtx)
	cancel()
	if err != nil {
		return m.State(), fmt.Errorf("sampling memory: %w", err)
	}

	next := domain.PressureNormal
	if load >= m.cfg.HighThreshold {
		next = domain.PressureHigh
	}

	m.mu.Lock()
	m.lastLoad = load
	if next == m.state {
		m.mu.Unlock()
		return next, nil
	}
	m.state = next
	targets := m.activeRespondersLocked()
	m.mu.Unlock()

	m.logger.Info("memory pressure changed",
		slog.String("state", next.String()),
		slog.Float64("load_percent", load))

	for _, e := range targets {
		m.notify(e, next)
	}
	if m.bus != nil {
		m.bus.Publish(domain.NewMemoryPressureChangedEvent(next, load))
	}
	return next, nil
}

// activeRespondersLocked drops unregistered entries and returns a copy of the rest.
func (m *MemoryMonitor) activeRespondersLocked() []responderEntry {
	kept := m.responders[:0]
	out := make([]responderEntry, 0, len(m.responders))
	for _, e := range m.responders {
		if !e.active {
			continue
		}
		kept = append(kept, e)
		out = append(out, *e)
	}
	clear(m.responders[len(kept):])
	m.responders = kept
	return out
}

func (m *MemoryMonitor) notify(e responderEntry, state domain.PressureState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("memory pressure responder panicked",
				slog.Uint64("responder", uint64(e.id)),
				slog.Any("panic", r))
		}
	}()

	if state == domain.PressureHigh {
		e.responder.OnHighMemoryPressure()
	} else {
		e.responder.OnNormalMemoryPressure()
	}
}

// ResponderFuncs adapts a pair of functions to ports.MemoryPressureResponder.
// Nil functions are skipped.
type ResponderFuncs struct {
	High   func()
	Normal func()
}

// OnHighMemoryPressure calls High.
func (f ResponderFuncs) OnHighMemoryPressure() {
	if f.High != nil {
		f.High()
	}
}

// OnNormalMemoryPressure calls Normal.
func (f ResponderFuncs) OnNormalMemoryPressure() {
	if f.Normal != nil {
		f.Normal()
	}
}
