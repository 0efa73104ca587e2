package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
)

// MemoryZoneStore keeps zones in process. Entries expire ZoneTTLDays after CreatedAt,
// matching the ClickHouse table TTL.
type MemoryZoneStore struct {
	mu    sync.RWMutex
	zones []models.Zone
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryZoneStore() *MemoryZoneStore {
	return &MemoryZoneStore{ttl: ZoneTTLDays * 24 * time.Hour, now: time.Now}
}

func (s *MemoryZoneStore) InsertMany(ctx context.Context, zones []models.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.zones = append(s.zones, zones...)
	return nil
}

func (s *MemoryZoneStore) Find(ctx context.Context, f drepo.ZoneFilter) ([]models.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.ttl)
	out := make([]models.Zone, 0)
	for _, z := range s.zones {
		if !z.CreatedAt.After(cutoff) || !f.Matches(z) {
			continue
		}
		out = append(out, z)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LegOutDate.Equal(out[j].LegOutDate) {
			return out[i].LegOutDate.Before(out[j].LegOutDate)
		}
		return out[i].Ticker < out[j].Ticker
	})

	limit := f.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryZoneStore) Health(context.Context) error { return nil }

func (s *MemoryZoneStore) Close() error { return nil }

// prune must be called with mu held.
func (s *MemoryZoneStore) prune() {
	cutoff := s.now().Add(-s.ttl)
	kept := s.zones[:0]
	for _, z := range s.zones {
		if z.CreatedAt.After(cutoff) {
			kept = append(kept, z)
		}
	}
	s.zones = kept
}

var _ drepo.ZoneStore = (*MemoryZoneStore)(nil)
