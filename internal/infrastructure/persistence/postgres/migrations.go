package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations in order, tracking them in
// schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns versions already applied.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}

			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}

	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}

	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}

		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_families",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_quiz_sets",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_notifications",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS parent_accounts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS child_profiles (
	id BIGSERIAL PRIMARY KEY,
	parent_id BIGINT NOT NULL REFERENCES parent_accounts(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	age INTEGER NOT NULL CHECK (age BETWEEN 3 AND 17),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_child_profiles_parent ON child_profiles(parent_id);

CREATE TABLE IF NOT EXISTS quiz_configs (
	id BIGSERIAL PRIMARY KEY,
	child_id BIGINT NOT NULL REFERENCES child_profiles(id) ON DELETE CASCADE,
	subject TEXT NOT NULL,
	age INTEGER NOT NULL CHECK (age BETWEEN 3 AND 17),
	level TEXT NOT NULL DEFAULT 'medium',
	quantity INTEGER NOT NULL DEFAULT 5 CHECK (quantity BETWEEN 1 AND 50),
	reward NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (reward >= 0),
	cadence TEXT NOT NULL DEFAULT 'daily',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	whatsapp_notifications BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quiz_configs_due
	ON quiz_configs(cadence) WHERE active;
`

const migration001Down = `
DROP TABLE IF EXISTS quiz_configs;
DROP TABLE IF EXISTS child_profiles;
DROP TABLE IF EXISTS parent_accounts;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS quiz_sets (
	id BIGSERIAL PRIMARY KEY,
	parent_id BIGINT NOT NULL REFERENCES parent_accounts(id),
	child_id BIGINT NOT NULL REFERENCES child_profiles(id),
	questions JSONB NOT NULL,
	reward NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (reward >= 0),
	status TEXT NOT NULL DEFAULT 'pending',
	automatic BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_on DATE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_sets_child ON quiz_sets(child_id);

-- Storage-level idempotency guard for the daily scheduler: at most one
-- automatic quiz set per child per calendar day. created_on is computed
-- by the application in the scheduler timezone so the index does not
-- depend on the session timezone.
CREATE UNIQUE INDEX IF NOT EXISTS quiz_sets_one_automatic_per_day
	ON quiz_sets (child_id, created_on) WHERE automatic;
`

const migration002Down = `
DROP TABLE IF EXISTS quiz_sets;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS notifications (
	id BIGSERIAL PRIMARY KEY,
	quiz_set_id BIGINT NOT NULL REFERENCES quiz_sets(id) ON DELETE CASCADE,
	child_id BIGINT NOT NULL REFERENCES child_profiles(id),
	parent_id BIGINT NOT NULL REFERENCES parent_accounts(id),
	phone TEXT NOT NULL,
	kind TEXT NOT NULL,
	body TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	sent_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_notifications_child ON notifications(child_id);

CREATE INDEX IF NOT EXISTS idx_notifications_pending
	ON notifications(status) WHERE status = 'pending';
`

const migration003Down = `
DROP TABLE IF EXISTS notifications;
`
