package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lox/rainmap/internal/api"
	"github.com/lox/rainmap/internal/chart"
	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/indices"
	"github.com/lox/rainmap/internal/models"
	"github.com/lox/rainmap/internal/source"
	"github.com/lox/rainmap/internal/store"
)

func newFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*source.Fetcher, error) {
	src, err := source.New(ctx, *cfg, logger)
	if err != nil {
		return nil, err
	}
	return source.NewFetcher(src, cfg.Source.Kind, logger), nil
}

type ServeCmd struct {
	Addr string `help:"HTTP listen address." default:":8080" env:"HTTP_ADDR"`
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fetcher, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	server := api.NewServer(fetcher, api.Options{Addr: c.Addr, Container: cfg.Container}, logger)
	return server.Run(ctx)
}

type Coordinate struct {
	Lat float64 `help:"Latitude in degrees." required:""`
	Lon float64 `help:"Longitude in degrees." required:""`
}

type FetchCmd struct {
	Coordinate `embed:""`

	out io.Writer
}

type fetchOutput struct {
	Station *models.Station `json:"station"`
	Figure  chart.Figure    `json:"figure"`
}

func (c *FetchCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fetcher, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ts, err := fetcher.Fetch(ctx, c.Lat, c.Lon)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Time Series for %g, %g", c.Lat, c.Lon)
	return writeJSON(c.out, fetchOutput{Station: ts.Station, Figure: chart.FromSeries(ts, title)})
}

type IndicesCmd struct {
	Coordinate `embed:""`

	Index  string `help:"Index to compute." enum:"max_n_day_precipitation_amount,maximum_consecutive_wet_days,maximum_consecutive_dry_days" default:"max_n_day_precipitation_amount"`
	N      int    `name:"n" help:"Window length in steps for max_n_day_precipitation_amount." default:"${default_window}"`
	Freq   string `help:"Reporting frequency (YS, QS-DEC, QS, MS)." default:"YS"`
	Thresh string `help:"Wet threshold, e.g. \"1 mm/d\" or \"> 0 mm/h\"." default:"1 mm/d"`

	out io.Writer
}

func (c *IndicesCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	freq, err := indices.ParseFrequency(c.Freq)
	if err != nil {
		return err
	}
	thresh, err := indices.ParseThreshold(c.Thresh)
	if err != nil {
		return err
	}

	fetcher, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	ts, err := fetcher.Fetch(ctx, c.Lat, c.Lon)
	if err != nil {
		return err
	}

	res, err := indices.New(ts).Compute(c.Index, indices.Params{N: c.N, Freq: freq, Threshold: thresh})
	if err != nil {
		return err
	}
	return writeJSON(c.out, res)
}

type ImportCmd struct {
	File       string `arg:"" help:"CSV file with time, total_precipitation, latitude, longitude and location_id columns." type:"existingfile"`
	LocationID string `name:"location-id" help:"Station id for rows without a location_id."`
}

func (c *ImportCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	observations, err := store.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}
	for i := range observations {
		if observations[i].LocationID == "" {
			observations[i].LocationID = c.LocationID
		}
	}

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	inserted, err := st.InsertObservations(ctx, observations)
	if err != nil {
		return err
	}
	logger.Info("import complete", "file", c.File, "rows", len(observations), "inserted", inserted, "skipped", len(observations)-inserted)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	version, err := st.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "driver", st.Driver(), "version", version)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
