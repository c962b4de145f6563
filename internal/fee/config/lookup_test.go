package config

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

func TestInMemoryLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the greatest valid_from at or below the year", func(t *testing.T) {
		store := NewInMemory()
		store.PutNational(&feemodels.NationalConfig{ValidFrom: 2020})
		store.PutNational(&feemodels.NationalConfig{ValidFrom: 2024})
		store.PutNational(&feemodels.NationalConfig{ValidFrom: 2026})

		cfg, err := store.NationalConfig(ctx, 2025)
		require.NoError(t, err)
		assert.Equal(t, 2024, cfg.ValidFrom)

		cfg, err = store.NationalConfig(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, 2026, cfg.ValidFrom)
	})

	t.Run("missing national configuration is fatal", func(t *testing.T) {
		store := NewInMemory()
		store.PutNational(&feemodels.NationalConfig{ValidFrom: 2024})

		_, err := store.NationalConfig(ctx, 2023)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationMissing))
	})

	t.Run("section configurations are versioned per group", func(t *testing.T) {
		store := NewInMemory()
		groupA := id.GroupID(uuid.New())
		groupB := id.GroupID(uuid.New())
		store.PutSection(&feemodels.SectionConfig{GroupID: groupA, ValidFrom: 2020})
		store.PutSection(&feemodels.SectionConfig{GroupID: groupA, ValidFrom: 2025})
		store.PutSection(&feemodels.SectionConfig{GroupID: groupB, ValidFrom: 2023})

		cfg, err := store.SectionConfig(ctx, groupA, 2025)
		require.NoError(t, err)
		assert.Equal(t, 2025, cfg.ValidFrom)

		cfg, err = store.SectionConfig(ctx, groupB, 2025)
		require.NoError(t, err)
		assert.Equal(t, 2023, cfg.ValidFrom)
	})

	t.Run("missing section configuration is fatal", func(t *testing.T) {
		store := NewInMemory()
		_, err := store.SectionConfig(ctx, id.GroupID(uuid.New()), 2025)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationMissing))
	})
}
