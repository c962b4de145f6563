// Package lock serializes membership transitions per household.
//
// Two transitions for the same household running concurrently could
// both observe "no active home role" and double-create roles. Every
// transition acquires the household lock before its first read; the
// lock is a correctness requirement, not an optimization.
package lock

import "context"

// Locker grants exclusive access to a household-scoped key.
//
// Acquire returns a release function on success. When the key is held
// elsewhere it returns sentinel.ErrLocked (wrapped or bare); the caller
// surfaces that as a retryable transition conflict.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
