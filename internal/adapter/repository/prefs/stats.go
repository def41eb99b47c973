package prefs

import (
	"context"
	"slices"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

const (
	statKeyPrefix = "stats."
	statIDsKey    = "stats._ids"
	recentKey     = "history.recent"

	// RecentLimit caps the play history list.
	RecentLimit = 50
)

// StatsRepository implements ports.PlayStatsSink using Fyne preferences.
// It keeps one PlayStat per track and a most-recent-first play history.
//
// Thread-safe: All operations protected by sync.RWMutex.
type StatsRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
	ids   idIndex
	now   func() time.Time
}

// NewStatsRepository creates a new play statistics repository.
func NewStatsRepository(prefs fyne.Preferences) *StatsRepository {
	return &StatsRepository{
		prefs: prefs,
		ids:   idIndex{prefs: prefs, key: statIDsKey},
		now:   time.Now,
	}
}

// RecordPlay stamps the track as played now and pushes it onto the history.
func (r *StatsRepository) RecordPlay(ctx context.Context, trackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stat := r.statLocked(trackID)
	stat.LastPlayed = r.now()
	if err := r.saveLocked(stat); err != nil {
		return err
	}

	var recent []string
	_, _ = readJSON(r.prefs, recentKey, &recent)
	recent = append([]string{trackID}, recent...)
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	if err := writeJSON(r.prefs, recentKey, recent); err != nil {
		return domain.NewRepositoryError("record_play", "stats", "failed to marshal history", err)
	}
	return nil
}

// IncrementPlayCount stores newCount as the track's play count.
func (r *StatsRepository) IncrementPlayCount(ctx context.Context, trackID string, newCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stat := r.statLocked(trackID)
	stat.PlayCount = newCount
	return r.saveLocked(stat)
}

// Stat returns the statistics of one track. Unknown tracks have a zero count.
func (r *StatsRepository) Stat(trackID string) domain.PlayStat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statLocked(trackID)
}

// Stats returns every stored statistic, most played first.
func (r *StatsRepository) Stats() []domain.PlayStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, _ := r.ids.load()
	stats := lo.Map(ids, func(id string, _ int) domain.PlayStat { return r.statLocked(id) })
	slices.SortStableFunc(stats, func(a, b domain.PlayStat) int { return b.PlayCount - a.PlayCount })
	return stats
}

// Recent returns the ids of recently played tracks, newest first.
func (r *StatsRepository) Recent() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recent []string
	if _, err := readJSON(r.prefs, recentKey, &recent); err != nil {
		return nil
	}
	return recent
}

// Clear removes all statistics and history.
func (r *StatsRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, _ := r.ids.load()
	for _, id := range ids {
		r.prefs.RemoveValue(statKeyPrefix + id)
	}
	r.prefs.RemoveValue(statIDsKey)
	r.prefs.RemoveValue(recentKey)
}

// statLocked must be called with lock held.
func (r *StatsRepository) statLocked(trackID string) domain.PlayStat {
	stat := domain.PlayStat{TrackID: trackID}
	if _, err := readJSON(r.prefs, statKeyPrefix+trackID, &stat); err != nil {
		return domain.PlayStat{TrackID: trackID}
	}
	return stat
}

// saveLocked must be called with lock held.
func (r *StatsRepository) saveLocked(stat domain.PlayStat) error {
	if err := writeJSON(r.prefs, statKeyPrefix+stat.TrackID, stat); err != nil {
		return domain.NewRepositoryError("save", "stats", "failed to marshal stat", err)
	}
	if err := r.ids.add(stat.TrackID); err != nil {
		return domain.NewRepositoryError("save", "stats", "failed to update stat index", err)
	}
	return nil
}

// Verify interface implementation
var _ ports.PlayStatsSink = (*StatsRepository)(nil)
