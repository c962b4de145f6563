package store

import (
	"context"
	"sync"
	"time"

	"cairn/internal/household"
	id "cairn/pkg/domain"
	"cairn/pkg/platform/sentinel"
)

// InMemory is a map-backed household directory for tests and seeding.
type InMemory struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*household.Person
}

func NewInMemory() *InMemory {
	return &InMemory{persons: make(map[id.PersonID]*household.Person)}
}

// Put inserts or replaces a person record.
func (s *InMemory) Put(p *household.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.persons[p.ID] = &clone
}

func (s *InMemory) FindPerson(_ context.Context, personID id.PersonID) (*household.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemory) HouseholdOf(_ context.Context, personID id.PersonID) (*household.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.HouseholdKey == "" {
		return nil, nil
	}
	h := &household.Household{Key: p.HouseholdKey}
	for _, candidate := range s.persons {
		if candidate.HouseholdKey == p.HouseholdKey {
			clone := *candidate
			h.Members = append(h.Members, &clone)
		}
	}
	return h, nil
}

// Snapshot copies the directory state for transactional rollback. The
// role store's in-memory transaction snapshots registered participants
// so a failed transition also unwinds confirmation stamps, matching the
// Postgres stores sharing one transaction.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[id.PersonID]*household.Person, len(s.persons))
	for k, v := range s.persons {
		clone := *v
		if v.ConfirmedAt != nil {
			t := *v.ConfirmedAt
			clone.ConfirmedAt = &t
		}
		snap[k] = &clone
	}
	return snap
}

// Restore replaces the directory state with a snapshot taken earlier.
func (s *InMemory) Restore(snapshot any) {
	snap, ok := snapshot.(map[id.PersonID]*household.Person)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons = snap
}

func (s *InMemory) MarkConfirmed(_ context.Context, personID id.PersonID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.ConfirmedAt == nil {
		t := at
		p.ConfirmedAt = &t
	}
	return nil
}
