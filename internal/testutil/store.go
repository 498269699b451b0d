package testutil

import (
	"context"
	"sync"

	"github.com/cory-johannsen/fairway/internal/game/stats"
	"github.com/cory-johannsen/fairway/internal/game/transaction"
)

// MemoryStore is an in-memory profile store.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[uint32]stats.Profile
	ledgers  map[uint32][]transaction.Record
	saves    int
}

// NewMemoryStore creates a store seeded with profiles.
func NewMemoryStore(profiles ...stats.Profile) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[uint32]stats.Profile, len(profiles)),
		ledgers:  make(map[uint32][]transaction.Record),
	}
	for _, p := range profiles {
		s.profiles[p.AccountID] = p
	}
	return s
}

// LoadProfile returns the stored profile or stats.ErrStatisticsNotFound.
func (s *MemoryStore) LoadProfile(_ context.Context, accountID uint32) (stats.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[accountID]
	if !ok {
		return stats.Profile{}, stats.ErrStatisticsNotFound
	}
	return p, nil
}

// SaveProfile replaces the stored profile and appends ledger.
func (s *MemoryStore) SaveProfile(_ context.Context, p stats.Profile, ledger []transaction.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.AccountID]; !ok {
		return stats.ErrStatisticsNotFound
	}
	s.profiles[p.AccountID] = p
	s.ledgers[p.AccountID] = append(s.ledgers[p.AccountID], ledger...)
	s.saves++
	return nil
}

// Profile returns the stored profile of accountID.
func (s *MemoryStore) Profile(accountID uint32) (stats.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[accountID]
	return p, ok
}

// Ledger returns every record saved for accountID.
func (s *MemoryStore) Ledger(accountID uint32) []transaction.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transaction.Record(nil), s.ledgers[accountID]...)
}

// Saves returns the number of successful SaveProfile calls.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
