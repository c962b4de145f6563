package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cairn/internal/household"
	id "cairn/pkg/domain"
	"cairn/pkg/platform/sentinel"
	"cairn/pkg/platform/tx"

	"github.com/google/uuid"
)

// Postgres reads the household directory from PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const personColumns = `id, household_key, main_person, birth_date, confirmed_at`

func (s *Postgres) FindPerson(ctx context.Context, personID id.PersonID) (*household.Person, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = $1`, uuid.UUID(personID))
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *Postgres) HouseholdOf(ctx context.Context, personID id.PersonID) (*household.Household, error) {
	p, err := s.FindPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if p.HouseholdKey == "" {
		return nil, nil
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE household_key = $1 ORDER BY id`, p.HouseholdKey)
	if err != nil {
		return nil, fmt.Errorf("load household: %w", err)
	}
	defer rows.Close()

	h := &household.Household{Key: p.HouseholdKey}
	for rows.Next() {
		member, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household member: %w", err)
		}
		h.Members = append(h.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate household: %w", err)
	}
	return h, nil
}

func (s *Postgres) MarkConfirmed(ctx context.Context, personID id.PersonID, at time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE people SET confirmed_at = $2 WHERE id = $1 AND confirmed_at IS NULL`,
		uuid.UUID(personID), at)
	if err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark confirmed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*household.Person, error) {
	var (
		p            household.Person
		personID     uuid.UUID
		householdKey sql.NullString
		confirmedAt  sql.NullTime
	)
	if err := row.Scan(&personID, &householdKey, &p.MainPerson, &p.BirthDate, &confirmedAt); err != nil {
		return nil, err
	}
	p.ID = id.PersonID(personID)
	p.HouseholdKey = householdKey.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	return &p, nil
}
