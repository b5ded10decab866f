package source

import (
	"context"
	"fmt"

	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/models"
	"github.com/lox/rainmap/internal/store"
)

// Database reads observations from the weather table. Each call opens its
// own connection and closes it before returning.
type Database struct {
	cfg config.Database
}

func NewDatabase(cfg config.Database) *Database {
	return &Database{cfg: cfg}
}

func (d *Database) Timeseries(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	st, err := d.open(ctx)
	if err != nil {
		return models.TimeSeries{}, err
	}
	defer st.Close()

	return st.NearestSeries(ctx, lat, lon)
}

func (d *Database) Stations(ctx context.Context) ([]models.Station, error) {
	st, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return st.Stations(ctx)
}

func (d *Database) open(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, d.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return st, nil
}
