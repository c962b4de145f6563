package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

// Postgres reads fee configurations from PostgreSQL. Each version is
// one row with the full table as a JSONB document; selection picks the
// greatest valid_from at or before the requested year.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) NationalConfig(ctx context.Context, year int) (*feemodels.NationalConfig, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM national_fee_configs
		 WHERE valid_from <= $1
		 ORDER BY valid_from DESC LIMIT 1`, year).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeConfigurationMissing, "no national fee configuration for year %d", year)
		}
		return nil, fmt.Errorf("load national fee config: %w", err)
	}
	var cfg feemodels.NationalConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode national fee config: %w", err)
	}
	return &cfg, nil
}

func (s *Postgres) SectionConfig(ctx context.Context, groupID id.GroupID, year int) (*feemodels.SectionConfig, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM section_fee_configs
		 WHERE group_id = $1 AND valid_from <= $2
		 ORDER BY valid_from DESC LIMIT 1`, uuid.UUID(groupID), year).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeConfigurationMissing, "no fee configuration for section %s in year %d", groupID.String(), year)
		}
		return nil, fmt.Errorf("load section fee config: %w", err)
	}
	var cfg feemodels.SectionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode section fee config: %w", err)
	}
	return &cfg, nil
}
