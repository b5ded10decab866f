package source

import (
	"context"
	"math"
	"time"

	"github.com/lox/rainmap/internal/models"
)

var (
	syntheticStart = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	syntheticEnd   = time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Synthetic serves one generated hourly year of a sine wave, whatever the
// coordinate. Useful for demos and tests without a database.
type Synthetic struct {
	series models.TimeSeries
}

func NewSynthetic() *Synthetic {
	n := int(syntheticEnd.Sub(syntheticStart)/time.Hour) + 1
	points := make([]models.Point, n)
	for i := range points {
		points[i] = models.Point{
			Time:          syntheticStart.Add(time.Duration(i) * time.Hour),
			Precipitation: math.Sin(2 * math.Pi * float64(i) / float64(n-1)),
		}
	}
	return &Synthetic{series: models.TimeSeries{Points: points}}
}

func (s *Synthetic) Timeseries(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.TimeSeries{}, err
	}
	// Callers may modify the result.
	points := make([]models.Point, len(s.series.Points))
	copy(points, s.series.Points)
	return models.TimeSeries{Points: points}, nil
}
