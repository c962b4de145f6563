package role

import (
	"context"
	"sync"

	"cairn/internal/membership/models"
	id "cairn/pkg/domain"
	"cairn/pkg/platform/sentinel"
)

// InMemory is a map-backed role store. Used by unit tests and as the
// default when no database is wired.
type InMemory struct {
	mu    sync.RWMutex
	roles map[id.RoleID]*models.Role

	// txMu serializes whole transactions so a rollback restores a
	// snapshot no concurrent transaction has written over.
	txMu         sync.Mutex
	participants []TxParticipant
}

// TxParticipant is a sibling in-memory store that joins this store's
// rollback. The Postgres stores share one *sql.Tx through the context;
// memory-backed setups get the same all-or-nothing contract by
// snapshotting every participant alongside the roles.
type TxParticipant interface {
	Snapshot() any
	Restore(snapshot any)
}

type memTxKey struct{}

func NewInMemory() *InMemory {
	return &InMemory{roles: make(map[id.RoleID]*models.Role)}
}

// JoinTx registers a participant whose state is restored together with
// the roles when a transaction rolls back.
func (s *InMemory) JoinTx(p TxParticipant) {
	s.participants = append(s.participants, p)
}

func (s *InMemory) FindByPerson(_ context.Context, personID id.PersonID) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Role
	for _, r := range s.roles {
		if r.PersonID == personID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, roleID id.RoleID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) Create(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.roles[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) Update(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.roles[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[roleID]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.roles, roleID)
	return nil
}

// RunInTx executes fn against a snapshot of the store: on error every
// mutation made inside fn is rolled back. Nested transactions join the
// outer one.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if joined, ok := ctx.Value(memTxKey{}).(bool); ok && joined {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[id.RoleID]*models.Role, len(s.roles))
	for k, v := range s.roles {
		snapshot[k] = v.Clone()
	}
	s.mu.Unlock()

	joined := make([]any, len(s.participants))
	for i, p := range s.participants {
		joined[i] = p.Snapshot()
	}

	err := fn(context.WithValue(ctx, memTxKey{}, true))

	if err != nil {
		s.mu.Lock()
		s.roles = snapshot
		s.mu.Unlock()
		for i, p := range s.participants {
			p.Restore(joined[i])
		}
		return err
	}
	return nil
}
