package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cairn/internal/membership/models"
	id "cairn/pkg/domain"
	"cairn/pkg/platform/sentinel"
	"cairn/pkg/platform/tx"
)

// Postgres persists roles in PostgreSQL.
//
// RunInTx opens a serializable transaction; the required per-household
// serialization of transitions relies on serializable isolation plus
// the caller's household lock.
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

const roleColumns = `id, person_id, group_id, kind, fee_category, created_at,
	soft_deleted_at, archived_at, planned_end_on, terminated, termination_reason,
	convert_to, convert_on`

func (s *Postgres) FindByPerson(ctx context.Context, personID id.PersonID) ([]*models.Role, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE person_id = $1 ORDER BY created_at, id`,
		uuid.UUID(personID))
	if err != nil {
		return nil, fmt.Errorf("find roles by person: %w", err)
	}
	defer rows.Close()

	var out []*models.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return out, nil
}

func (s *Postgres) FindByID(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, uuid.UUID(roleID))
	r, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return r, nil
}

func (s *Postgres) Create(ctx context.Context, r *models.Role) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO roles (`+roleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(r.ID), uuid.UUID(r.PersonID), uuid.UUID(r.GroupID),
		string(r.Kind), string(r.FeeCategory), r.CreatedAt,
		r.SoftDeletedAt, r.ArchivedAt, r.PlannedEndOn,
		r.Terminated, r.TerminationReason,
		nullableString(string(r.ConvertTo)), r.ConvertOn)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, r *models.Role) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE roles SET
			group_id = $2, kind = $3, fee_category = $4, created_at = $5,
			soft_deleted_at = $6, archived_at = $7, planned_end_on = $8,
			terminated = $9, termination_reason = $10, convert_to = $11, convert_on = $12
		 WHERE id = $1`,
		uuid.UUID(r.ID), uuid.UUID(r.GroupID), string(r.Kind), string(r.FeeCategory),
		r.CreatedAt, r.SoftDeletedAt, r.ArchivedAt, r.PlannedEndOn,
		r.Terminated, r.TerminationReason,
		nullableString(string(r.ConvertTo)), r.ConvertOn)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, roleID id.RoleID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, uuid.UUID(roleID))
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// RunInTx runs fn inside one serializable transaction. Serialization
// failures surface as sentinel.ErrConflict so the transition service
// can report a retryable conflict.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, joined := tx.From(ctx); joined {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		if isSerializationFailure(err) {
			return sentinel.ErrConflict
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*models.Role, error) {
	var (
		r                 models.Role
		roleID            uuid.UUID
		personID          uuid.UUID
		groupID           uuid.NullUUID
		kind              string
		category          string
		softDeletedAt     sql.NullTime
		archivedAt        sql.NullTime
		plannedEndOn      sql.NullTime
		terminationReason sql.NullString
		convertTo         sql.NullString
		convertOn         sql.NullTime
	)
	err := row.Scan(&roleID, &personID, &groupID, &kind, &category, &r.CreatedAt,
		&softDeletedAt, &archivedAt, &plannedEndOn, &r.Terminated, &terminationReason,
		&convertTo, &convertOn)
	if err != nil {
		return nil, err
	}
	r.ID = id.RoleID(roleID)
	r.PersonID = id.PersonID(personID)
	if groupID.Valid {
		r.GroupID = id.GroupID(groupID.UUID)
	}
	r.Kind = id.RoleKind(kind)
	r.FeeCategory = id.FeeCategory(category)
	r.TerminationReason = terminationReason.String
	r.ConvertTo = id.RoleKind(convertTo.String)
	if softDeletedAt.Valid {
		t := softDeletedAt.Time
		r.SoftDeletedAt = &t
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		r.ArchivedAt = &t
	}
	if plannedEndOn.Valid {
		t := plannedEndOn.Time
		r.PlannedEndOn = &t
	}
	if convertOn.Valid {
		t := convertOn.Time
		r.ConvertOn = &t
	}
	return &r, nil
}
