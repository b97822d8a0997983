package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"holder-tiers/internal/storage/postgres"
)

const postgresVersions = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER     PRIMARY KEY,
		name       TEXT        NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// RunPostgresMigrations applies every embedded migration not yet recorded in
// schema_migrations. Each migration commits together with its record, so a
// failed file is retried whole on the next start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	all, err := Load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, postgresVersions); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := postgresApplied(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range Pending(all, applied) {
		err := pool.InTx(ctx, func(tx pgx.Tx) error {
			if strings.TrimSpace(m.SQL) != "" {
				if _, err := tx.Exec(ctx, m.SQL); err != nil {
					return fmt.Errorf("apply migration %s: %w", m.File(), err)
				}
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.Version, m.Name,
			); err != nil {
				return fmt.Errorf("record migration %s: %w", m.File(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func postgresApplied(ctx context.Context, pool *postgres.Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[int(v)] = true
	}
	return applied, nil
}
