package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS travelers (
			employee_no TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			job_level TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			aliases TEXT[] NOT NULL DEFAULT '{}',
			city_tier INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (name, kind)
		)`,

		`CREATE TABLE IF NOT EXISTS expense_items (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS standards (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'draft',
			priority INTEGER NOT NULL DEFAULT 0,
			effective_date TIMESTAMPTZ NOT NULL,
			expiry_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_standards_status ON standards(status)`,
		`CREATE INDEX IF NOT EXISTS idx_standards_window
			ON standards(status, effective_date, expiry_date)`,

		`CREATE TABLE IF NOT EXISTS condition_groups (
			id BIGSERIAL PRIMARY KEY,
			standard_id BIGINT NOT NULL REFERENCES standards(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL DEFAULT '',
			logic_operator TEXT NOT NULL DEFAULT 'AND',
			position INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_condition_groups_standard
			ON condition_groups(standard_id)`,

		`CREATE TABLE IF NOT EXISTS conditions (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL REFERENCES condition_groups(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			operator TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			location_ids BIGINT[] NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conditions_group ON conditions(group_id)`,

		`CREATE TABLE IF NOT EXISTS standard_expense_entries (
			id BIGSERIAL PRIMARY KEY,
			standard_id BIGINT NOT NULL REFERENCES standards(id) ON DELETE CASCADE,
			expense_item_id BIGINT NOT NULL REFERENCES expense_items(id),
			limit_type TEXT NOT NULL,
			limit_amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
			limit_min DECIMAL(12, 2) NOT NULL DEFAULT 0,
			limit_max DECIMAL(12, 2) NOT NULL DEFAULT 0,
			percentage DECIMAL(7, 4) NOT NULL DEFAULT 0,
			base_amount DECIMAL(12, 2) NOT NULL DEFAULT 0,
			calc_unit TEXT NOT NULL DEFAULT 'PER_DAY'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expense_entries_standard
			ON standard_expense_entries(standard_id)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
