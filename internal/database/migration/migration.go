package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mediagateway/internal/model"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_category_policies",
		SQL: `CREATE TABLE IF NOT EXISTS category_policies (
  category       TEXT        PRIMARY KEY,
  max_size_bytes BIGINT      NOT NULL CHECK (max_size_bytes > 0),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_category_content_types",
		SQL: `CREATE TABLE IF NOT EXISTS category_content_types (
  category     TEXT NOT NULL REFERENCES category_policies (category) ON DELETE CASCADE,
  content_type TEXT NOT NULL,
  PRIMARY KEY (category, content_type)
);`,
	},
	{
		Name: "create_table_media_records",
		SQL: `CREATE TABLE IF NOT EXISTS media_records (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id    UUID        NOT NULL,
  category    TEXT        NOT NULL REFERENCES category_policies (category),
  storage_key TEXT        NOT NULL UNIQUE,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_media_records_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_records_owner ON media_records (owner_id, category);`,
	},
}

// EnsureMigrated creates the schema when the sentinel table is missing, then seeds
// policy rows for categories that have none. Seeding never overwrites stored limits.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger zerolog.Logger, dbHost string, defaults map[model.Category]*model.CategoryPolicy) error {
	start := time.Now()
	log := logger.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Msg("checking schema")

	var exists bool
	query := "SELECT to_regclass('public.media_records') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error().Err(err).
			Str("event", "db_migration_failed").
			Dur("duration", time.Since(start)).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().Str("event", "db_migration_skip").Msg("schema already exists, skipping migration")
	} else {
		for _, step := range steps {
			stepStart := time.Now()
			if _, err := db.ExecContext(ctx, step.SQL); err != nil {
				log.Error().Err(err).
					Str("event", "db_migration_failed").
					Str("migration_step", step.Name).
					Dur("step_duration", time.Since(stepStart)).
					Msg("migration step failed")
				return fmt.Errorf("migration step %s failed: %w", step.Name, err)
			}
			log.Debug().
				Str("event", "db_migration_step").
				Str("migration_step", step.Name).
				Dur("step_duration", time.Since(stepStart)).
				Msg("migration step applied")
		}
	}

	if err := seedPolicies(ctx, db, defaults); err != nil {
		log.Error().Err(err).Str("event", "db_policy_seed_failed").Msg("policy seed failed")
		return err
	}

	log.Info().
		Str("event", "db_migration_success").
		Dur("duration", time.Since(start)).
		Msg("schema ready")
	return nil
}

// seedPolicies inserts a default policy for every category that has no row yet.
func seedPolicies(ctx context.Context, db *sql.DB, defaults map[model.Category]*model.CategoryPolicy) error {
	const qPolicy = `INSERT INTO category_policies (category, max_size_bytes) VALUES ($1, $2) ON CONFLICT (category) DO NOTHING`
	const qType = `INSERT INTO category_content_types (category, content_type) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	for _, c := range model.Categories {
		p, ok := defaults[c]
		if !ok {
			continue
		}
		res, err := db.ExecContext(ctx, qPolicy, string(c), p.MaxSizeBytes)
		if err != nil {
			return fmt.Errorf("seed policy %s: %w", c, err)
		}
		// Only a freshly inserted policy gets the default allow-list.
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			continue
		}
		for _, ct := range p.ContentTypes() {
			if _, err := db.ExecContext(ctx, qType, string(c), ct); err != nil {
				return fmt.Errorf("seed content type %s/%s: %w", c, ct, err)
			}
		}
	}
	return nil
}
