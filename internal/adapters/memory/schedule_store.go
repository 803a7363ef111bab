package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScheduleStore is an in-memory schedule store for tests and local runs
type ScheduleStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]time.Time
}

// NewScheduleStore creates an empty in-memory schedule store
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{entries: make(map[uuid.UUID]time.Time)}
}

func (s *ScheduleStore) Add(ctx context.Context, auctionID uuid.UUID, endAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[auctionID] = endAt
	return nil
}

func (s *ScheduleStore) Due(ctx context.Context, now time.Time, limit int64) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []uuid.UUID
	for auctionID, endAt := range s.entries {
		if int64(len(due)) >= limit {
			break
		}
		if !endAt.After(now) {
			due = append(due, auctionID)
		}
	}
	return due, nil
}

func (s *ScheduleStore) Remove(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, auctionID)
	return nil
}

// Contains reports whether an auction is scheduled (test helper)
func (s *ScheduleStore) Contains(auctionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[auctionID]
	return ok
}
