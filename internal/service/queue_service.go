// Package service provides the business logic of the GoTune queue engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

const queueServiceName = "QueueService"

// QueueServiceConfig holds QueueService settings.
type QueueServiceConfig struct {
	// ProfileID is the profile whose queue Load restores
	ProfileID domain.ProfileID

	// LoadRetries is the number of attempts made to read the persisted queue
	LoadRetries int

	// LoadRetryDelay is the pause between two attempts
	LoadRetryDelay time.Duration

	// StatsTimeout bounds each background call into the play stats sink
	StatsTimeout time.Duration

	// ShuffleSeed seeds the shuffle generator; zero seeds from the clock
	ShuffleSeed uint64
}

// DefaultQueueServiceConfig returns the production settings.
func DefaultQueueServiceConfig() QueueServiceConfig {
	return QueueServiceConfig{
		ProfileID:      1,
		LoadRetries:    3,
		LoadRetryDelay: 200 * time.Millisecond,
		StatsTimeout:   2 * time.Second,
	}
}

// QueueService owns the playback queue: the ordered tracks, the current
// position and the shuffle and repeat state.
//
// While shuffled, originalOrder holds the same entries as nowPlaying in their
// unshuffled order so shuffle can be turned off again. Composition changes
// are persisted in full through the SaveCoordinator; position and repeat
// changes persist metadata only.
//
// Events are published after the lock is released, so handlers may call
// back into the service.
type QueueService struct {
	logger   *slog.Logger
	cfg      QueueServiceConfig
	repo     ports.QueueRepository
	resolver ports.TrackResolver
	bus      ports.EventBus
	saver    *SaveCoordinator
	plays    *playRecorder

	mu            sync.RWMutex
	nowPlaying    []domain.QueuedTrack
	originalOrder []domain.QueuedTrack
	currentIndex  int
	shuffled      bool
	repeat        domain.RepeatMode
	rng           *rand.Rand

	// Read by writers on the coordinator goroutine.
	queueID   atomic.Int64
	profileID atomic.Int64

	trackCompletedSub domain.SubscriptionID
}

// NewQueueService creates a queue service with an empty queue.
// The service takes ownership of saver and closes it in Shutdown.
// stats may be nil.
func NewQueueService(
	logger *slog.Logger,
	cfg QueueServiceConfig,
	repo ports.QueueRepository,
	resolver ports.TrackResolver,
	stats ports.PlayStatsSink,
	bus ports.EventBus,
	saver *SaveCoordinator,
) *QueueService {
	seed := cfg.ShuffleSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if cfg.LoadRetries <= 0 {
		cfg.LoadRetries = 1
	}
	if cfg.StatsTimeout <= 0 {
		cfg.StatsTimeout = DefaultQueueServiceConfig().StatsTimeout
	}

	s := &QueueService{
		logger:       logger,
		cfg:          cfg,
		repo:         repo,
		resolver:     resolver,
		bus:          bus,
		saver:        saver,
		currentIndex: domain.NoIndex,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	s.profileID.Store(int64(cfg.ProfileID))
	if stats != nil {
		s.plays = newPlayRecorder(logger, stats, cfg.StatsTimeout)
	}

	s.trackCompletedSub = bus.Subscribe(domain.EventTrackCompleted, s.handleTrackCompleted)

	return s
}

// Load replaces the in-memory queue with the persisted queue of the current
// profile. Reading and resolving are retried; if every attempt fails the queue is left empty
// and an error wrapping domain.ErrQueueLoadFailed is returned.
func (s *QueueService) Load(ctx context.Context) error {
	profile := domain.ProfileID(s.profileID.Load())

	rec, resolved, err := s.fetchWithRetry(ctx, profile)

	s.mu.Lock()
	s.resetLocked()
	switch {
	case err == nil && rec != nil:
		s.queueID.Store(int64(rec.ID))
		s.nowPlaying, s.originalOrder, s.currentIndex, s.shuffled = restoreQueue(rec, resolved)
		s.repeat = parseStoredRepeat(s.logger, rec.Metadata.RepeatMode)
		s.reindexLocked()
	case rec != nil:
		// The record exists but its tracks could not be resolved. The next
		// full save overwrites it instead of creating a second queue.
		s.queueID.Store(int64(rec.ID))
	default:
		s.queueID.Store(0)
	}
	event := s.changedEventLocked(false)
	count := len(s.nowPlaying)
	s.mu.Unlock()

	s.bus.Publish(event)

	if err != nil {
		s.logger.Error("queue load failed, starting with an empty queue",
			slog.Int64("profile_id", int64(profile)),
			slog.Any("error", err))
		return domain.NewServiceError(queueServiceName, "Load", "persisted queue unavailable",
			errors.Join(domain.ErrQueueLoadFailed, err))
	}

	dropped := 0
	if rec != nil {
		dropped = len(rec.Tracks) - count
	}
	s.logger.Info("queue loaded",
		slog.Int64("profile_id", int64(profile)),
		slog.Int("tracks", count),
		slog.Int("dropped", dropped))
	return nil
}

// fetchWithRetry reads and resolves the persisted queue, retrying both steps.
// On failure the last record read, if any, is returned with the error.
func (s *QueueService) fetchWithRetry(ctx context.Context, profile domain.ProfileID) (*domain.PersistedQueueRecord, []domain.ResolvedRow, error) {
	var (
		lastRec *domain.PersistedQueueRecord
		lastErr error
	)
	for attempt := 1; attempt <= s.cfg.LoadRetries; attempt++ {
		rec, resolved, err := s.fetch(ctx, profile)
		if err == nil {
			return rec, resolved, nil
		}
		if rec != nil {
			lastRec = rec
		}
		lastErr = err
		s.logger.Warn("reading persisted queue failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.cfg.LoadRetries),
			slog.Any("error", err))

		if attempt == s.cfg.LoadRetries {
			break
		}
		timer := time.NewTimer(s.cfg.LoadRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastRec, nil, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return lastRec, nil, lastErr
}

func (s *QueueService) fetch(ctx context.Context, profile domain.ProfileID) (*domain.PersistedQueueRecord, []domain.ResolvedRow, error) {
	rec, err := s.repo.GetCurrentQueue(ctx, profile)
	if err != nil || rec == nil {
		return nil, nil, err
	}
	resolved, err := s.resolver.ResolveTracks(ctx, rec.Tracks)
	if err != nil {
		return rec, nil, fmt.Errorf("resolving tracks of queue %d: %w", rec.ID, err)
	}
	return rec, resolved, nil
}

// restoreQueue rebuilds the queue from persisted rows. Rows without a
// catalog track are already gone from resolved.
func restoreQueue(rec *domain.PersistedQueueRecord, resolved []domain.ResolvedRow) ([]domain.QueuedTrack, []domain.QueuedTrack, int, bool) {
	if len(resolved) == 0 {
		return nil, nil, domain.NoIndex, false
	}

	rows := slices.Clone(resolved)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Row.Position < rows[j].Row.Position })

	nowPlaying := make([]domain.QueuedTrack, len(rows))
	current := domain.NoIndex
	for i, r := range rows {
		nowPlaying[i] = domain.NewQueuedTrack(r.Track, i)
		if r.Row.Position == rec.Metadata.CurrentPosition {
			current = i
		}
	}
	if current == domain.NoIndex {
		current = min(max(rec.Metadata.CurrentPosition, 0), len(nowPlaying)-1)
	}

	shuffled := rec.Metadata.Shuffled && lo.EveryBy(rows, func(r domain.ResolvedRow) bool {
		return r.Row.OriginalPosition >= 0
	})
	if !shuffled {
		return nowPlaying, nil, current, false
	}

	order := lo.Range(len(rows))
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].Row.OriginalPosition < rows[order[b]].Row.OriginalPosition
	})
	original := lo.Map(order, func(i int, _ int) domain.QueuedTrack { return nowPlaying[i] })

	return nowPlaying, original, current, true
}

func parseStoredRepeat(logger *slog.Logger, s string) domain.RepeatMode {
	mode, err := domain.ParseRepeatMode(s)
	if err != nil {
		logger.Warn("ignoring stored repeat mode", slog.String("value", s))
	}
	return mode
}

// PlayTrack replaces the queue with candidates and makes track current.
// With shuffleAfter the new queue is shuffled around the chosen track.
// It returns once the new queue has been written; a failed write is logged
// and does not fail the call.
func (s *QueueService) PlayTrack(ctx context.Context, track domain.MusicTrack, candidates []domain.MusicTrack, shuffleAfter bool) error {
	if track.ID == "" {
		return domain.NewValidationError("track", track.ID, "track id is required")
	}
	if len(candidates) == 0 {
		return domain.NewValidationError("candidates", 0, "candidate list must not be empty")
	}

	_, index, found := lo.FindIndexOf(candidates, func(t domain.MusicTrack) bool { return t.ID == track.ID })
	if !found {
		return domain.NewServiceError(queueServiceName, "PlayTrack",
			fmt.Sprintf("track %s is not in the candidate list", track.ID), domain.ErrTrackNotFound)
	}

	s.mu.Lock()
	s.nowPlaying = domain.NewQueuedTracks(candidates)
	s.originalOrder = nil
	s.shuffled = false
	s.currentIndex = index
	if shuffleAfter {
		s.shuffleLocked(false)
	}
	s.reindexLocked()
	play := s.markPlayedLocked()
	rec := s.recordLocked()
	event := s.changedEventLocked(false)
	s.mu.Unlock()

	s.recordPlay(play)

	if err := s.saver.SaveFullQueueImmediate(ctx, s.fullWriter("play_track", rec)); err != nil {
		s.logger.Warn("queue not saved after play", slog.Any("error", err))
	}

	if shuffleAfter {
		s.bus.Publish(domain.NewShuffleToggledEvent(true))
	}
	s.bus.Publish(event)
	return nil
}

// AddNext inserts tracks right after the current track. On an empty queue
// the tracks become the queue and the first one becomes current.
func (s *QueueService) AddNext(tracks []domain.MusicTrack) error {
	return s.addTracks("add_next", tracks, true)
}

// AddToEnd appends tracks. On an empty queue the tracks become the queue
// and the first one becomes current.
func (s *QueueService) AddToEnd(tracks []domain.MusicTrack) error {
	return s.addTracks("add_to_end", tracks, false)
}

func (s *QueueService) addTracks(op string, tracks []domain.MusicTrack, afterCurrent bool) error {
	if len(tracks) == 0 {
		return domain.NewValidationError("tracks", 0, "at least one track is required")
	}
	entries := domain.NewQueuedTracks(tracks)

	s.mu.Lock()
	shuffleOp := true
	switch {
	case len(s.nowPlaying) == 0:
		s.nowPlaying = entries
		s.originalOrder = nil
		s.shuffled = false
		s.currentIndex = 0
		shuffleOp = false
	case afterCurrent:
		s.nowPlaying = slices.Insert(s.nowPlaying, s.currentIndex+1, entries...)
		if s.shuffled {
			at := locateEntry(s.originalOrder, s.nowPlaying[s.currentIndex])
			if at == domain.NoIndex {
				at = len(s.originalOrder) - 1
			}
			s.originalOrder = slices.Insert(s.originalOrder, at+1, entries...)
		}
	default:
		s.nowPlaying = append(s.nowPlaying, entries...)
		if s.shuffled {
			s.originalOrder = append(s.originalOrder, entries...)
		}
	}
	s.reindexLocked()
	rec := s.recordLocked()
	event := s.changedEventLocked(shuffleOp)
	s.mu.Unlock()

	s.saver.SaveFullQueueInBackground(s.fullWriter(op, rec))
	s.bus.Publish(event)
	return nil
}

// RemoveAt removes the entry at index from both orderings. Removing the
// current entry makes its successor current, or the new last entry when it
// was the last one.
func (s *QueueService) RemoveAt(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.nowPlaying) {
		n := len(s.nowPlaying)
		s.mu.Unlock()
		return domain.NewIndexError("index", index, n)
	}

	removed := s.nowPlaying[index]
	previousCurrent := s.nowPlaying[s.currentIndex].InstanceID

	s.nowPlaying = slices.Delete(slices.Clone(s.nowPlaying), index, index+1)
	if s.shuffled {
		s.originalOrder = lo.Reject(s.originalOrder, func(q domain.QueuedTrack, _ int) bool {
			return q.InstanceID == removed.InstanceID
		})
	}

	switch {
	case len(s.nowPlaying) == 0:
		s.resetLocked()
	case index < s.currentIndex:
		s.currentIndex--
	case s.currentIndex >= len(s.nowPlaying):
		s.currentIndex = len(s.nowPlaying) - 1
	}
	s.reindexLocked()

	shuffleOp := len(s.nowPlaying) > 0 && s.nowPlaying[s.currentIndex].InstanceID == previousCurrent
	rec := s.recordLocked()
	event := s.changedEventLocked(shuffleOp)
	s.mu.Unlock()

	s.saver.SaveFullQueueInBackground(s.fullWriter("remove", rec))
	s.bus.Publish(event)
	return nil
}

// Advance returns the index navigation in direction would move to, or
// domain.NoIndex when there is none. It does not change the queue.
//
// RepeatAll wraps at both ends. RepeatNone and RepeatOne stop at the ends;
// replaying the current track under RepeatOne is up to the playback engine.
func (s *QueueService) Advance(direction domain.NavigationDirection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.nowPlaying)
	if n == 0 || s.currentIndex == domain.NoIndex {
		return domain.NoIndex
	}

	switch direction {
	case domain.DirectionNext:
		if s.currentIndex+1 < n {
			return s.currentIndex + 1
		}
		if s.repeat == domain.RepeatAll {
			return 0
		}
	case domain.DirectionPrevious:
		if s.currentIndex > 0 {
			return s.currentIndex - 1
		}
		if s.repeat == domain.RepeatAll {
			return n - 1
		}
	}
	return domain.NoIndex
}

// SetCurrentIndex makes the entry at index current, counts a play for it and
// schedules a debounced metadata save.
func (s *QueueService) SetCurrentIndex(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.nowPlaying) {
		n := len(s.nowPlaying)
		s.mu.Unlock()
		return domain.NewIndexError("index", index, n)
	}

	s.currentIndex = index
	play := s.markPlayedLocked()
	rec := s.recordLocked()
	event := s.changedEventLocked(false)
	s.mu.Unlock()

	s.recordPlay(play)
	s.saver.ScheduleMetadataSave(s.metadataWriter("set_current_index", rec))
	s.bus.Publish(event)
	return nil
}

// ToggleShuffle switches shuffle on or off and returns the new state.
//
// Turning it on keeps the current entry current unless restartFromFirst is
// set, in which case the first shuffled entry becomes current. Turning it off
// restores the unshuffled order with the same rule. It is a no-op on an empty
// queue.
func (s *QueueService) ToggleShuffle(restartFromFirst bool) bool {
	s.mu.Lock()
	if len(s.nowPlaying) == 0 {
		s.mu.Unlock()
		return false
	}

	if s.shuffled {
		s.unshuffleLocked(restartFromFirst)
	} else {
		s.shuffleLocked(restartFromFirst)
	}
	s.reindexLocked()
	enabled := s.shuffled
	rec := s.recordLocked()
	event := s.changedEventLocked(true)
	s.mu.Unlock()

	s.saver.SaveFullQueueInBackground(s.fullWriter("toggle_shuffle", rec))
	s.bus.Publish(domain.NewShuffleToggledEvent(enabled))
	s.bus.Publish(event)
	return enabled
}

// shuffleLocked snapshots the current order and permutes nowPlaying.
// The caller reindexes.
func (s *QueueService) shuffleLocked(restartFromFirst bool) {
	current := s.nowPlaying[s.currentIndex]

	s.originalOrder = slices.Clone(s.nowPlaying)
	permuted := slices.Clone(s.nowPlaying)
	s.rng.Shuffle(len(permuted), func(i, j int) {
		permuted[i], permuted[j] = permuted[j], permuted[i]
	})
	s.nowPlaying = permuted
	s.shuffled = true

	s.currentIndex = 0
	if !restartFromFirst {
		if i := locateEntry(s.nowPlaying, current); i != domain.NoIndex {
			s.currentIndex = i
		}
	}
}

// unshuffleLocked restores the snapshot taken by shuffleLocked.
// The caller reindexes.
func (s *QueueService) unshuffleLocked(restartFromFirst bool) {
	target := s.nowPlaying[s.currentIndex]
	target.Position = target.OriginalPosition

	s.nowPlaying = slices.Clone(s.originalOrder)
	s.originalOrder = nil
	s.shuffled = false

	s.currentIndex = 0
	if !restartFromFirst {
		if i := locateEntry(s.nowPlaying, target); i != domain.NoIndex {
			s.currentIndex = i
		}
	}
}

// Reorder replaces the queue order with newOrder, which must hold exactly the
// entries of the queue (matched by InstanceID), and makes newCurrentIndex
// current. The unshuffled order is left untouched.
func (s *QueueService) Reorder(newOrder []domain.QueuedTrack, newCurrentIndex int) error {
	s.mu.Lock()
	n := len(s.nowPlaying)
	if len(newOrder) != n {
		s.mu.Unlock()
		return domain.NewValidationError("newOrder", len(newOrder), fmt.Sprintf("must hold the %d queued entries", n))
	}
	if n == 0 {
		s.mu.Unlock()
		return nil
	}
	if newCurrentIndex < 0 || newCurrentIndex >= n {
		s.mu.Unlock()
		return domain.NewIndexError("newCurrentIndex", newCurrentIndex, n)
	}

	byInstance := lo.KeyBy(s.nowPlaying, func(q domain.QueuedTrack) string { return q.InstanceID })
	reordered := make([]domain.QueuedTrack, 0, n)
	for _, q := range newOrder {
		entry, ok := byInstance[q.InstanceID]
		if !ok {
			s.mu.Unlock()
			return domain.NewValidationError("newOrder", q.InstanceID, "entry is not in the queue or appears twice")
		}
		delete(byInstance, q.InstanceID)
		reordered = append(reordered, entry)
	}

	s.nowPlaying = reordered
	s.currentIndex = newCurrentIndex
	s.reindexLocked()
	rec := s.recordLocked()
	event := s.changedEventLocked(true)
	s.mu.Unlock()

	s.saver.SaveFullQueueInBackground(s.fullWriter("reorder", rec))
	s.bus.Publish(event)
	return nil
}

// Clear empties the queue. The persisted queue keeps its id and settings
// but loses its track rows.
func (s *QueueService) Clear() {
	s.mu.Lock()
	s.resetLocked()
	rec := s.recordLocked()
	event := s.changedEventLocked(false)
	id := domain.QueueID(s.queueID.Load())
	s.mu.Unlock()

	s.saver.SaveFullQueueInBackground(s.fullWriter("clear", rec))
	s.bus.Publish(domain.NewQueueClearedEvent(id))
	s.bus.Publish(event)
}

// ToggleRepeat cycles None, All, One and returns the new mode.
func (s *QueueService) ToggleRepeat() domain.RepeatMode {
	return s.applyRepeat(domain.RepeatMode.Next)
}

// SetRepeatMode sets the repeat mode directly.
func (s *QueueService) SetRepeatMode(mode domain.RepeatMode) error {
	if !mode.Valid() {
		return domain.NewValidationError("mode", int(mode), "unknown repeat mode")
	}
	s.applyRepeat(func(domain.RepeatMode) domain.RepeatMode { return mode })
	return nil
}

func (s *QueueService) applyRepeat(next func(domain.RepeatMode) domain.RepeatMode) domain.RepeatMode {
	s.mu.Lock()
	s.repeat = next(s.repeat)
	mode := s.repeat
	rec := s.recordLocked()
	s.mu.Unlock()

	s.saver.SaveRepeatModeImmediate(s.metadataWriter("repeat_mode", rec))
	s.bus.Publish(domain.NewRepeatModeChangedEvent(mode))
	return mode
}

// ChangeProfile writes out pending saves of the current profile, then loads
// the queue of profileID.
func (s *QueueService) ChangeProfile(ctx context.Context, profileID domain.ProfileID) error {
	if err := s.saver.FlushPendingSavesOnShutdown(ctx); err != nil {
		s.logger.Warn("flushing queue before profile change failed", slog.Any("error", err))
	}

	s.mu.Lock()
	s.profileID.Store(int64(profileID))
	s.queueID.Store(0)
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("profile changed", slog.Int64("profile_id", int64(profileID)))
	return s.Load(ctx)
}

// OnShutdown writes a debounced save that has not fired yet and waits for
// queued writes and recorded plays to finish.
func (s *QueueService) OnShutdown(ctx context.Context) error {
	if err := s.saver.FlushPendingSavesOnShutdown(ctx); err != nil {
		return domain.NewServiceError(queueServiceName, "OnShutdown", "flushing pending saves", err)
	}
	if s.plays != nil {
		if err := s.plays.flush(ctx); err != nil {
			return domain.NewServiceError(queueServiceName, "OnShutdown", "flushing play stats", err)
		}
	}
	return nil
}

// Shutdown unsubscribes from the event bus and stops the background writers.
// Call OnShutdown first to keep pending saves and recorded plays.
func (s *QueueService) Shutdown() error {
	s.bus.Unsubscribe(s.trackCompletedSub)
	s.saver.Close()
	if s.plays != nil {
		s.plays.close()
	}
	return nil
}

// handleTrackCompleted moves to the next entry when the playback engine
// reports the current track finished.
func (s *QueueService) handleTrackCompleted(domain.Event) {
	if s.RepeatMode() == domain.RepeatOne {
		return
	}

	next := s.Advance(domain.DirectionNext)
	if next == domain.NoIndex {
		s.logger.Debug("end of queue reached")
		return
	}
	if err := s.SetCurrentIndex(next); err != nil {
		s.logger.Warn("auto advance failed", slog.Any("error", err))
	}
}

// CurrentIndex returns the current index or domain.NoIndex.
func (s *QueueService) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIndex
}

// CurrentTrack returns a copy of the current entry.
func (s *QueueService) CurrentTrack() (domain.QueuedTrack, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentIndex == domain.NoIndex {
		return domain.QueuedTrack{}, false
	}
	return s.nowPlaying[s.currentIndex], true
}

// Queue returns a copy of the playing order.
func (s *QueueService) Queue() []domain.QueuedTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.nowPlaying)
}

// Len returns the number of queued entries.
func (s *QueueService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nowPlaying)
}

// IsShuffled reports whether shuffle is on.
func (s *QueueService) IsShuffled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffled
}

// RepeatMode returns the repeat mode.
func (s *QueueService) RepeatMode() domain.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// QueueID returns the persisted id, zero until the first write created it.
func (s *QueueService) QueueID() domain.QueueID {
	return domain.QueueID(s.queueID.Load())
}

// ProfileID returns the active profile.
func (s *QueueService) ProfileID() domain.ProfileID {
	return domain.ProfileID(s.profileID.Load())
}

// Snapshot returns a copy of the whole queue state.
func (s *QueueService) Snapshot() domain.QueueSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.QueueSnapshot{
		NowPlaying:    slices.Clone(s.nowPlaying),
		OriginalOrder: slices.Clone(s.originalOrder),
		CurrentIndex:  s.currentIndex,
		Shuffled:      s.shuffled,
		RepeatMode:    s.repeat,
		QueueID:       domain.QueueID(s.queueID.Load()),
		ProfileID:     domain.ProfileID(s.profileID.Load()),
	}
}

// resetLocked empties both orderings. Repeat mode is a setting and survives.
func (s *QueueService) resetLocked() {
	s.nowPlaying = nil
	s.originalOrder = nil
	s.currentIndex = domain.NoIndex
	s.shuffled = false
}

// reindexLocked renumbers Position in both orderings and derives
// OriginalPosition of playing entries from the unshuffled order.
func (s *QueueService) reindexLocked() {
	if !s.shuffled {
		s.originalOrder = nil
	}

	original := make(map[string]int, len(s.originalOrder))
	for j := range s.originalOrder {
		s.originalOrder[j].Position = j
		s.originalOrder[j].OriginalPosition = j
		original[s.originalOrder[j].InstanceID] = j
	}

	for i := range s.nowPlaying {
		s.nowPlaying[i].Position = i
		s.nowPlaying[i].OriginalPosition = domain.NoIndex
		if j, ok := original[s.nowPlaying[i].InstanceID]; ok {
			s.nowPlaying[i].OriginalPosition = j
		}
	}
}

// locateEntry finds target in list by instance id, then by catalog id and
// position, then by catalog id alone.
func locateEntry(list []domain.QueuedTrack, target domain.QueuedTrack) int {
	if target.InstanceID != "" {
		if _, i, ok := lo.FindIndexOf(list, func(q domain.QueuedTrack) bool {
			return q.InstanceID == target.InstanceID
		}); ok {
			return i
		}
	}
	if _, i, ok := lo.FindIndexOf(list, func(q domain.QueuedTrack) bool {
		return q.Track.ID == target.Track.ID && q.Position == target.Position
	}); ok {
		return i
	}
	if _, i, ok := lo.FindIndexOf(list, func(q domain.QueuedTrack) bool {
		return q.Track.ID == target.Track.ID
	}); ok {
		return i
	}
	return domain.NoIndex
}

// markPlayedLocked bumps the play count of the current track in every entry
// that references it.
func (s *QueueService) markPlayedLocked() playRecord {
	current := s.nowPlaying[s.currentIndex].Track
	count := current.PlayCount + 1

	bump := func(list []domain.QueuedTrack) {
		for i := range list {
			if list[i].Track.ID == current.ID {
				list[i].Track.PlayCount = count
			}
		}
	}
	bump(s.nowPlaying)
	bump(s.originalOrder)

	return playRecord{trackID: current.ID, count: count}
}

// recordPlay hands the play to the stats sink without waiting for it.
func (s *QueueService) recordPlay(play playRecord) {
	if s.plays != nil {
		s.plays.submit(play)
	}
}

func (s *QueueService) recordLocked() domain.PersistedQueueRecord {
	rows := make([]domain.QueueTrackRow, len(s.nowPlaying))
	for i, q := range s.nowPlaying {
		rows[i] = domain.QueueTrackRow{
			TrackID:          q.Track.ID,
			Position:         i,
			OriginalPosition: q.OriginalPosition,
		}
	}

	return domain.PersistedQueueRecord{
		ID:        domain.QueueID(s.queueID.Load()),
		ProfileID: domain.ProfileID(s.profileID.Load()),
		Metadata: domain.QueueMetadata{
			CurrentPosition: s.currentIndex,
			Shuffled:        s.shuffled,
			RepeatMode:      s.repeat.String(),
		},
		LastModified: time.Now(),
		Tracks:       rows,
	}
}

func (s *QueueService) changedEventLocked(shuffleOp bool) domain.QueueChangedEvent {
	queue := slices.Clone(s.nowPlaying)
	var current *domain.QueuedTrack
	if s.currentIndex != domain.NoIndex {
		c := queue[s.currentIndex]
		current = &c
	}
	return domain.NewQueueChangedEvent(current, queue, s.currentIndex, shuffleOp)
}

// fullWriter persists composition and metadata captured in rec.
func (s *QueueService) fullWriter(op string, rec domain.PersistedQueueRecord) SaveFunc {
	return s.writer(op, rec, func(ctx context.Context, id domain.QueueID) error {
		if err := s.repo.ReplaceQueueTracks(ctx, id, rec.Tracks); err != nil {
			return err
		}
		return s.repo.UpdateQueueMetadata(ctx, id, rec.Metadata)
	})
}

// metadataWriter persists only the metadata captured in rec.
func (s *QueueService) metadataWriter(op string, rec domain.PersistedQueueRecord) SaveFunc {
	return s.writer(op, rec, func(ctx context.Context, id domain.QueueID) error {
		return s.repo.UpdateQueueMetadata(ctx, id, rec.Metadata)
	})
}

// writer creates the queue on first use, otherwise runs update against it.
// Writes captured for a profile that is no longer active are skipped.
func (s *QueueService) writer(op string, rec domain.PersistedQueueRecord, update func(context.Context, domain.QueueID) error) SaveFunc {
	return func(ctx context.Context) error {
		if rec.ProfileID != domain.ProfileID(s.profileID.Load()) {
			s.logger.Debug("skipping save for inactive profile",
				slog.String("op", op),
				slog.Int64("profile_id", int64(rec.ProfileID)))
			return nil
		}

		var err error
		if id := domain.QueueID(s.queueID.Load()); id != 0 {
			err = update(ctx, id)
		} else {
			var created domain.QueueID
			created, err = s.repo.CreateQueue(ctx, rec)
			if err == nil {
				s.queueID.Store(int64(created))
			}
		}

		if err != nil {
			s.bus.Publish(domain.NewQueuePersistFailedEvent(op, err))
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
}

var _ interface {
	Load(ctx context.Context) error
	PlayTrack(ctx context.Context, track domain.MusicTrack, candidates []domain.MusicTrack, shuffleAfter bool) error
	AddNext(tracks []domain.MusicTrack) error
	AddToEnd(tracks []domain.MusicTrack) error
	Advance(direction domain.NavigationDirection) int
	SetCurrentIndex(index int) error
	ToggleShuffle(restartFromFirst bool) bool
	Reorder(newOrder []domain.QueuedTrack, newCurrentIndex int) error
	Clear()
	ToggleRepeat() domain.RepeatMode
	OnShutdown(ctx context.Context) error
} = (*QueueService)(nil)
