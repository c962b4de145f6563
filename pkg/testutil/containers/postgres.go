//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Schema is the module's full schema, applied to fresh containers.
const Schema = `
CREATE TABLE IF NOT EXISTS roles (
	id                 UUID PRIMARY KEY,
	person_id          UUID NOT NULL,
	group_id           UUID,
	kind               TEXT NOT NULL,
	fee_category       TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	soft_deleted_at    TIMESTAMPTZ,
	archived_at        TIMESTAMPTZ,
	planned_end_on     TIMESTAMPTZ,
	terminated         BOOLEAN NOT NULL DEFAULT FALSE,
	termination_reason TEXT NOT NULL DEFAULT '',
	convert_to         TEXT,
	convert_on         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS roles_person_idx ON roles (person_id);

CREATE TABLE IF NOT EXISTS people (
	id            UUID PRIMARY KEY,
	household_key TEXT NOT NULL DEFAULT '',
	main_person   BOOLEAN NOT NULL DEFAULT FALSE,
	birth_date    TIMESTAMPTZ NOT NULL,
	confirmed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS people_household_idx ON people (household_key);

CREATE TABLE IF NOT EXISTS national_fee_configs (
	valid_from INT PRIMARY KEY,
	config     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS section_fee_configs (
	group_id   UUID NOT NULL,
	valid_from INT NOT NULL,
	config     JSONB NOT NULL,
	PRIMARY KEY (group_id, valid_from)
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("cairn_test"),
		tcpostgres.WithUsername("cairn"),
		tcpostgres.WithPassword("cairn"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateTables empties the given tables. Use between tests to ensure
// isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
