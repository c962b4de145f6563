package redis

import (
	feeconfig "cairn/internal/fee/config"
	"cairn/internal/membership/lock"
	"cairn/internal/platform/config"
)

// Stack bundles the Redis-backed infrastructure of the membership core:
// the distributed household lock and the fee-configuration cache. With
// Redis unconfigured (empty URL) both fall back to their in-process
// variants, so single-node deployments run without Redis entirely.
type Stack struct {
	Client  *Client
	Locks   lock.Locker
	Configs feeconfig.Lookup
}

// NewStack assembles the stack from storage configuration. configs is
// the backing lookup (Postgres or in-memory); it is decorated with the
// read-through cache when a client is available.
func NewStack(cfg config.Store, configs feeconfig.Lookup) (*Stack, error) {
	client, err := New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	st := &Stack{
		Client:  client,
		Locks:   lock.NewInMemory(),
		Configs: configs,
	}
	if client != nil {
		st.Locks = lock.NewRedis(client.Client, config.HouseholdLockTTL)
		st.Configs = feeconfig.NewRedisCache(configs, client.Client, config.ConfigCacheTTL)
	}
	return st, nil
}

// Close releases the Redis connection if one was opened.
func (s *Stack) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}
