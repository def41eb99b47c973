package service

import (
	"context"
	"errors"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

var errStorageDown = errors.New("storage down")

// mockQueueRepository is an in-memory ports.QueueRepository that records
// the order of the calls it receives.
type mockQueueRepository struct {
	mu      sync.Mutex
	nextID  domain.QueueID
	queues  map[domain.QueueID]domain.PersistedQueueRecord
	current map[domain.ProfileID]domain.QueueID
	calls   []string

	getErrs   []error // consumed one per GetCurrentQueue call
	writeErr  error
	writeWait time.Duration
}

func newMockQueueRepository() *mockQueueRepository {
	return &mockQueueRepository{
		queues:  make(map[domain.QueueID]domain.PersistedQueueRecord),
		current: make(map[domain.ProfileID]domain.QueueID),
	}
}

func (m *mockQueueRepository) GetCurrentQueue(_ context.Context, profileID domain.ProfileID) (*domain.PersistedQueueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "get")
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	id, ok := m.current[profileID]
	if !ok {
		return nil, nil
	}
	rec := m.queues[id]
	rec.Tracks = slices.Clone(rec.Tracks)
	return &rec, nil
}

func (m *mockQueueRepository) CreateQueue(_ context.Context, record domain.PersistedQueueRecord) (domain.QueueID, error) {
	m.slowWrite()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "create")
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.nextID++
	record.ID = m.nextID
	record.Tracks = slices.Clone(record.Tracks)
	m.queues[record.ID] = record
	m.current[record.ProfileID] = record.ID
	return record.ID, nil
}

func (m *mockQueueRepository) UpdateQueueMetadata(_ context.Context, id domain.QueueID, meta domain.QueueMetadata) error {
	m.slowWrite()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "metadata")
	if m.writeErr != nil {
		return m.writeErr
	}
	rec, ok := m.queues[id]
	if !ok {
		return domain.ErrQueueNotFound
	}
	rec.Metadata = meta
	m.queues[id] = rec
	return nil
}

func (m *mockQueueRepository) ReplaceQueueTracks(_ context.Context, id domain.QueueID, rows []domain.QueueTrackRow) error {
	m.slowWrite()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "tracks")
	if m.writeErr != nil {
		return m.writeErr
	}
	rec, ok := m.queues[id]
	if !ok {
		return domain.ErrQueueNotFound
	}
	rec.Tracks = slices.Clone(rows)
	m.queues[id] = rec
	return nil
}

func (m *mockQueueRepository) DeleteQueue(_ context.Context, id domain.QueueID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "delete")
	rec, ok := m.queues[id]
	if !ok {
		return nil
	}
	delete(m.queues, id)
	if m.current[rec.ProfileID] == id {
		delete(m.current, rec.ProfileID)
	}
	return nil
}

func (m *mockQueueRepository) slowWrite() {
	m.mu.Lock()
	wait := m.writeWait
	m.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

func (m *mockQueueRepository) setWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *mockQueueRepository) record(id domain.QueueID) (domain.PersistedQueueRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.queues[id]
	rec.Tracks = slices.Clone(rec.Tracks)
	return rec, ok
}

func (m *mockQueueRepository) seed(rec domain.PersistedQueueRecord) domain.QueueID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.queues[rec.ID] = rec
	m.current[rec.ProfileID] = rec.ID
	return rec.ID
}

func (m *mockQueueRepository) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// mockResolver resolves rows from a fixed catalog.
type mockResolver struct {
	mu     sync.Mutex
	tracks map[string]domain.MusicTrack
	err    error   // returned by every call when set
	errs   []error // consumed one per call before err is consulted
	calls  int
}

func newMockResolver(tracks ...domain.MusicTrack) *mockResolver {
	r := &mockResolver{tracks: make(map[string]domain.MusicTrack)}
	for _, t := range tracks {
		r.tracks[t.ID] = t
	}
	return r
}

func (r *mockResolver) ResolveTracks(_ context.Context, rows []domain.QueueTrackRow) ([]domain.ResolvedRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.ResolvedRow, 0, len(rows))
	for _, row := range rows {
		if t, ok := r.tracks[row.TrackID]; ok {
			out = append(out, domain.ResolvedRow{Row: row, Track: t})
		}
	}
	return out, nil
}

func (r *mockResolver) failWith(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = errs
}

func (r *mockResolver) failAlways(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *mockResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// mockStats records play statistics calls.
type mockStats struct {
	mu     sync.Mutex
	plays  []string
	counts map[string]int
}

func newMockStats() *mockStats {
	return &mockStats{counts: make(map[string]int)}
}

func (m *mockStats) RecordPlay(_ context.Context, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays = append(m.plays, trackID)
	return nil
}

func (m *mockStats) IncrementPlayCount(_ context.Context, trackID string, newCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[trackID] = newCount
	return nil
}

func (m *mockStats) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.plays)
}

func (m *mockStats) count(trackID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[trackID]
}

// blockingStats holds every sink call until release is closed.
type blockingStats struct {
	*mockStats
	release chan struct{}
}

func newBlockingStats() *blockingStats {
	return &blockingStats{mockStats: newMockStats(), release: make(chan struct{})}
}

func (b *blockingStats) RecordPlay(ctx context.Context, trackID string) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.mockStats.RecordPlay(ctx, trackID)
}

func (b *blockingStats) IncrementPlayCount(ctx context.Context, trackID string, newCount int) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.mockStats.IncrementPlayCount(ctx, trackID, newCount)
}

// mockDecoder returns a fixed-size image and records decode order.
type mockDecoder struct {
	mu      sync.Mutex
	order   []string
	gate    chan struct{} // when set, each decode waits for a value
	started chan string   // when set, receives each path as decoding starts
	fail    map[string]error
	panics  map[string]bool
}

func (d *mockDecoder) DecodeAndResize(ctx context.Context, path string, width, height int, _ bool) (image.Image, error) {
	if d.started != nil {
		d.started <- path
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	d.order = append(d.order, path)
	err := d.fail[path]
	panics := d.panics[path]
	d.mu.Unlock()

	if panics {
		panic("decoder exploded")
	}
	if err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (d *mockDecoder) decoded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.order)
}

// mockSampler returns queued readings, repeating the last one.
type mockSampler struct {
	mu       sync.Mutex
	readings []float64
	err      error
}

func (s *mockSampler) MemoryLoadPercent(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	v := s.readings[0]
	if len(s.readings) > 1 {
		s.readings = s.readings[1:]
	}
	return v, nil
}

func (s *mockSampler) push(values ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, values...)
}

// recordingResponder counts pressure notifications.
type recordingResponder struct {
	mu      sync.Mutex
	events  []domain.PressureState
	panicky bool
}

func (r *recordingResponder) OnHighMemoryPressure() {
	r.add(domain.PressureHigh)
}

func (r *recordingResponder) OnNormalMemoryPressure() {
	r.add(domain.PressureNormal)
}

func (r *recordingResponder) add(state domain.PressureState) {
	r.mu.Lock()
	r.events = append(r.events, state)
	panicky := r.panicky
	r.mu.Unlock()
	if panicky {
		panic("responder failure")
	}
}

func (r *recordingResponder) seen() []domain.PressureState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

var (
	_ ports.QueueRepository         = (*mockQueueRepository)(nil)
	_ ports.TrackResolver           = (*mockResolver)(nil)
	_ ports.PlayStatsSink           = (*mockStats)(nil)
	_ ports.ImageDecoder            = (*mockDecoder)(nil)
	_ ports.MemorySampler           = (*mockSampler)(nil)
	_ ports.MemoryPressureResponder = (*recordingResponder)(nil)
)
