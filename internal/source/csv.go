package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/lox/rainmap/internal/models"
	"github.com/lox/rainmap/internal/store"
)

// CSV serves a series loaded once from a file. The file holds a single
// record, so every coordinate gets the same series.
type CSV struct {
	path   string
	series models.TimeSeries
}

// NewCSV reads path, a local file or an ftp:// URL, and prepares the series.
func NewCSV(ctx context.Context, path string, logger *slog.Logger) (*CSV, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(path, "ftp://") {
		data, err = fetchFTP(ctx, path, logger)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load csv %s: %w", redactURL(path), err)
	}

	series, err := parseCSVSeries(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load csv %s: %w", redactURL(path), err)
	}

	logger.Info("csv source loaded", "path", redactURL(path), "points", series.Len())
	return &CSV{path: path, series: series}, nil
}

func parseCSVSeries(r io.Reader) (models.TimeSeries, error) {
	observations, err := store.ReadCSV(r)
	if err != nil {
		return models.TimeSeries{}, err
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Time.Before(observations[j].Time)
	})

	points := make([]models.Point, 0, len(observations))
	for _, obs := range observations {
		if n := len(points); n > 0 && points[n-1].Time.Equal(obs.Time) {
			continue
		}
		points = append(points, models.Point{Time: obs.Time, Precipitation: obs.Precipitation})
	}
	return models.TimeSeries{Points: points}, nil
}

func (c *CSV) Timeseries(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	points := make([]models.Point, len(c.series.Points))
	copy(points, c.series.Points)
	return models.TimeSeries{Points: points}, nil
}

// redactURL hides any password embedded in an ftp:// path.
func redactURL(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.User == nil {
		return path
	}
	return u.Redacted()
}
