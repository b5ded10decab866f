package source

import (
	"context"

	"github.com/lox/rainmap/internal/models"
)

// NetCDF is the placeholder for gridded file input. It always returns an
// empty series.
type NetCDF struct {
	Path string
}

func NewNetCDF(path string) *NetCDF {
	return &NetCDF{Path: path}
}

func (n *NetCDF) Timeseries(ctx context.Context, lat, lon float64) (models.TimeSeries, error) {
	return models.TimeSeries{}, nil
}
