package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lox/rainmap/internal/config"
)

type migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Weather observations",
		Postgres: `
CREATE TABLE IF NOT EXISTS weather (
    location_id TEXT NOT NULL,
    time TIMESTAMPTZ NOT NULL,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    total_precipitation DOUBLE PRECISION
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_weather_location_time ON weather (location_id, time);
`,
		SQLite: `
CREATE TABLE IF NOT EXISTS weather (
    location_id TEXT NOT NULL,
    time TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    total_precipitation REAL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_weather_location_time ON weather (location_id, time);
`,
	},
	{
		Version:     2,
		Description: "Coordinate index for station lookup",
		Postgres:    `CREATE INDEX IF NOT EXISTS idx_weather_coords ON weather (latitude, longitude);`,
		SQLite:      `CREATE INDEX IF NOT EXISTS idx_weather_coords ON weather (latitude, longitude);`,
	},
}

func (m migration) sql(driver string) string {
	if driver == config.DriverSQLite {
		return m.SQLite
	}
	return m.Postgres
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	record := "INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)"
	if s.dialect.name == config.DriverSQLite {
		record = "INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)"
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		slog.Info("migrations: applying", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sql(s.dialect.name)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, record, m.Version, m.Description, s.dialect.bindTime(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	appliedAt := "TIMESTAMPTZ"
	if s.dialect.name == config.DriverSQLite {
		appliedAt = "TEXT"
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at `+appliedAt+`
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
