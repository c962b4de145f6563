package lock

import (
	"context"
	"sync"

	"cairn/pkg/platform/sentinel"
)

// InMemory is a keyed try-lock for single-process deployments and tests.
type InMemory struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewInMemory() *InMemory {
	return &InMemory{held: make(map[string]bool)}
}

func (l *InMemory) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, sentinel.ErrLocked
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
