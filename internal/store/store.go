package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/models"
)

//go:embed sql
var sqlFS embed.FS

// sqliteTimeLayout is fixed width so that text timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name              string
	nearestSeries     string
	stations          string
	insertObservation string
	bindTime          func(time.Time) any
}

var dialects = map[string]dialect{
	config.DriverPostgres: {
		name:              config.DriverPostgres,
		nearestSeries:     mustReadSQL("postgres/nearest_series.sql"),
		stations:          mustReadSQL("postgres/stations.sql"),
		insertObservation: mustReadSQL("postgres/insert_observation.sql"),
		bindTime:          func(t time.Time) any { return t.UTC() },
	},
	config.DriverSQLite: {
		name:              config.DriverSQLite,
		nearestSeries:     mustReadSQL("sqlite/nearest_series.sql"),
		stations:          mustReadSQL("sqlite/stations.sql"),
		insertObservation: mustReadSQL("sqlite/insert_observation.sql"),
		bindTime:          func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	},
}

func mustReadSQL(name string) string {
	b, err := sqlFS.ReadFile("sql/" + name)
	if err != nil {
		panic(fmt.Sprintf("store: embedded query %s: %v", name, err))
	}
	return string(b)
}

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New wraps an open database. driver selects the SQL dialect.
func New(db *sql.DB, driver string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &Store{db: db, dialect: d}, nil
}

// Open connects to the configured database and verifies the connection.
// The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.Database) (*Store, error) {
	if _, ok := dialects[cfg.Driver]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite busy_timeout: %w", err)
		}
	}

	return New(db, cfg.Driver)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.dialect.name
}

// NearestSeries returns every observation, one per timestamp and ascending, of
// the station closest to (lat, lon) by squared distance in raw degrees. An
// empty table yields an empty series.
func (s *Store) NearestSeries(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.nearestSeries, lat, lon)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("nearest series: %w", err)
	}
	defer rows.Close()

	var ts models.TimeSeries
	for rows.Next() {
		var (
			at      scanTime
			precip  sql.NullFloat64
			station models.Station
		)
		if err := rows.Scan(&at, &precip, &station.Latitude, &station.Longitude, &station.ID); err != nil {
			return models.TimeSeries{}, fmt.Errorf("scan observation: %w", err)
		}
		if ts.Station == nil {
			ts.Station = &station
		}
		value := math.NaN()
		if precip.Valid {
			value = precip.Float64
		}
		ts.Points = append(ts.Points, models.Point{Time: at.Time, Precipitation: value})
	}
	if err := rows.Err(); err != nil {
		return models.TimeSeries{}, fmt.Errorf("nearest series: %w", err)
	}
	return ts, nil
}

// Stations lists each distinct location with its coordinates.
func (s *Store) Stations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.stations)
	if err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	defer rows.Close()

	stations := []models.Station{}
	for rows.Next() {
		var st models.Station
		dest := []any{&st.ID, &st.Latitude, &st.Longitude}
		if s.dialect.name == config.DriverSQLite {
			var latest any
			dest = append(dest, &latest)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// InsertObservations writes observations in one transaction, skipping rows
// whose (location_id, time) already exists. It returns the number inserted.
func (s *Store) InsertObservations(ctx context.Context, observations []models.Observation) (int, error) {
	for i, obs := range observations {
		if obs.LocationID == "" {
			return 0, fmt.Errorf("observation %d: missing location_id", i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insertObservation)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range observations {
		var precip sql.NullFloat64
		if !math.IsNaN(obs.Precipitation) {
			precip = sql.NullFloat64{Float64: obs.Precipitation, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, obs.LocationID, s.dialect.bindTime(obs.Time), obs.Latitude, obs.Longitude, precip)
		if err != nil {
			return 0, fmt.Errorf("insert %s at %s: %w", obs.LocationID, obs.Time.Format(time.RFC3339), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// scanTime accepts native timestamps (Postgres) and the text encodings SQLite
// databases hold.
type scanTime struct {
	time.Time
}

var textTimeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (st *scanTime) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		st.Time = x.UTC()
		return nil
	case string:
		return st.parse(x)
	case []byte:
		return st.parse(string(x))
	case nil:
		return fmt.Errorf("null timestamp")
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (st *scanTime) parse(s string) error {
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			st.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}
