// Package source provides the interchangeable backends that turn a map
// coordinate into a precipitation time series.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/models"
)

var (
	// ErrUnavailable marks a backend that could not be reached.
	ErrUnavailable = errors.New("data source unavailable")
	// ErrInvalidCoordinate is returned for a latitude or longitude out of range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Source returns the time series of the station nearest to (lat, lon).
// Backends without a station concept ignore the coordinate.
type Source interface {
	Timeseries(ctx context.Context, lat, lon float64) (models.TimeSeries, error)
}

// StationLister is implemented by sources that know their station locations.
type StationLister interface {
	Stations(ctx context.Context) ([]models.Station, error)
}

// New builds the source selected by cfg.Source.Kind.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (Source, error) {
	switch cfg.Source.Kind {
	case config.SourceDatabase:
		logger.Info("using database source", "driver", cfg.Database.Driver, "dsn", cfg.Database.Redacted())
		return NewDatabase(cfg.Database), nil
	case config.SourceCSV:
		logger.Info("using csv source", "path", redactURL(cfg.Source.CSVPath))
		return NewCSV(ctx, cfg.Source.CSVPath, logger)
	case config.SourceSynthetic:
		logger.Info("using synthetic source")
		return NewSynthetic(), nil
	case config.SourceNetCDF:
		logger.Info("using netcdf source", "path", cfg.Source.NetCDFPath)
		return NewNetCDF(cfg.Source.NetCDFPath), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source.Kind)
	}
}
