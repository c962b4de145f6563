// Package config resolves the fee tables a membership year is priced
// against. Configurations are versioned by valid-from year: among all
// records with valid_from <= year, the greatest valid_from wins.
package config

import (
	"context"
	"sort"
	"sync"

	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

// Lookup resolves fee configurations. A missing configuration is a
// provisioning error (CodeConfigurationMissing), fatal for fee
// computation and never defaulted.
type Lookup interface {
	NationalConfig(ctx context.Context, year int) (*feemodels.NationalConfig, error)
	SectionConfig(ctx context.Context, groupID id.GroupID, year int) (*feemodels.SectionConfig, error)
}

// InMemory holds configurations in memory, for tests and seeding.
type InMemory struct {
	mu       sync.RWMutex
	national []*feemodels.NationalConfig
	sections map[id.GroupID][]*feemodels.SectionConfig
}

func NewInMemory() *InMemory {
	return &InMemory{sections: make(map[id.GroupID][]*feemodels.SectionConfig)}
}

// PutNational registers a national configuration version.
func (s *InMemory) PutNational(cfg *feemodels.NationalConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.national = append(s.national, cfg)
	sort.Slice(s.national, func(i, j int) bool {
		return s.national[i].ValidFrom < s.national[j].ValidFrom
	})
}

// PutSection registers a section configuration version.
func (s *InMemory) PutSection(cfg *feemodels.SectionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[cfg.GroupID] = append(s.sections[cfg.GroupID], cfg)
	sort.Slice(s.sections[cfg.GroupID], func(i, j int) bool {
		return s.sections[cfg.GroupID][i].ValidFrom < s.sections[cfg.GroupID][j].ValidFrom
	})
}

func (s *InMemory) NationalConfig(_ context.Context, year int) (*feemodels.NationalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *feemodels.NationalConfig
	for _, cfg := range s.national {
		if cfg.ValidFrom <= year {
			best = cfg
		}
	}
	if best == nil {
		return nil, dErrors.Newf(dErrors.CodeConfigurationMissing, "no national fee configuration for year %d", year)
	}
	return best, nil
}

func (s *InMemory) SectionConfig(_ context.Context, groupID id.GroupID, year int) (*feemodels.SectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *feemodels.SectionConfig
	for _, cfg := range s.sections[groupID] {
		if cfg.ValidFrom <= year {
			best = cfg
		}
	}
	if best == nil {
		return nil, dErrors.Newf(dErrors.CodeConfigurationMissing, "no fee configuration for section %s in year %d", groupID.String(), year)
	}
	return best, nil
}
