package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lox/rainmap/internal/metrics"
	"github.com/lox/rainmap/internal/models"
)

// Fetcher is the entry point the HTTP and CLI surfaces use to read a
// series. It validates the coordinate and instruments the wrapped source.
type Fetcher struct {
	src    Source
	name   string
	logger *slog.Logger
}

func NewFetcher(src Source, name string, logger *slog.Logger) *Fetcher {
	return &Fetcher{src: src, name: name, logger: logger}
}

func (f *Fetcher) Name() string { return f.name }

func (f *Fetcher) Fetch(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	if err := ValidateCoordinate(lat, lon); err != nil {
		return models.TimeSeries{}, err
	}

	start := time.Now()
	ts, err := f.src.Timeseries(ctx, lat, lon)
	metrics.SourceFetchLatency.WithLabelValues(f.name).Observe(time.Since(start).Seconds())

	if err == nil {
		if verr := ts.Validate(); verr != nil {
			err = fmt.Errorf("%s returned an invalid series: %w", f.name, verr)
		}
	}
	if err != nil {
		status := "error"
		if errors.Is(err, ErrUnavailable) {
			status = "unavailable"
		}
		metrics.SourceFetchesTotal.WithLabelValues(f.name, status).Inc()
		f.logger.Error("fetch failed", "source", f.name, "lat", lat, "lon", lon, "error", err)
		return models.TimeSeries{}, err
	}

	metrics.SourceFetchesTotal.WithLabelValues(f.name, "ok").Inc()
	metrics.SeriesLength.WithLabelValues(f.name).Observe(float64(ts.Len()))

	attrs := []any{"source", f.name, "lat", lat, "lon", lon, "points", ts.Len(), "duration", time.Since(start)}
	if ts.Station != nil {
		attrs = append(attrs, "station", ts.Station.ID)
	}
	f.logger.Debug("fetched series", attrs...)
	return ts, nil
}

// Stations lists station locations, or nil when the source has none.
func (f *Fetcher) Stations(ctx context.Context) ([]models.Station, error) {
	lister, ok := f.src.(StationLister)
	if !ok {
		return nil, nil
	}
	return lister.Stations(ctx)
}

func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, lon)
	}
	return nil
}
