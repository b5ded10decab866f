package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/indices"
	"github.com/lox/rainmap/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, append(parserOptions(), kong.Exit(func(int) { t.Fatal("unexpected exit") }))...)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestParse_ServeIsDefault(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	cli, kctx := parseCLI(t, "--source", "synthetic")

	assert.Equal(t, "serve", kctx.Command())
	assert.Equal(t, ":9090", cli.Serve.Addr)
	assert.Equal(t, config.SourceSynthetic, cli.Config.Source.Kind)
}

func TestParse_Commands(t *testing.T) {
	cli, kctx := parseCLI(t, "indices", "--lat", "-41.3", "--lon", "174.8", "--index", "maximum_consecutive_dry_days", "--freq", "MS")
	assert.Equal(t, "indices", kctx.Command())
	assert.Equal(t, -41.3, cli.Indices.Lat)
	assert.Equal(t, indices.DefaultWindow, cli.Indices.N)
	assert.Equal(t, "1 mm/d", cli.Indices.Thresh)

	var c CLI
	parser, err := kong.New(&c, parserOptions()...)
	require.NoError(t, err)
	_, err = parser.Parse([]string{"indices", "--lat", "1", "--lon", "1", "--index", "spi"})
	assert.Error(t, err)
}

func TestFetchCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := FetchCmd{Coordinate: Coordinate{Lat: 10, Lon: 20}, out: &out}
	cfg := &config.Config{Source: config.Source{Kind: config.SourceSynthetic}}

	require.NoError(t, cmd.Run(context.Background(), cfg, testLogger()))

	var got struct {
		Figure struct {
			Title string `json:"title"`
			Y     []any  `json:"y"`
		} `json:"figure"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Time Series for 10, 20", got.Figure.Title)
	assert.Len(t, got.Figure.Y, 8737)
}

func TestIndicesCmd(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "rain.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("time,total_precipitation\n2022-01-01,0\n2022-01-02,4\n2022-01-03,5\n2022-01-04,0\n"), 0o644))

	var out bytes.Buffer
	cmd := IndicesCmd{
		Coordinate: Coordinate{Lat: 0, Lon: 0},
		Index:      "maximum_consecutive_wet_days",
		Freq:       "YS",
		Thresh:     "1 mm/d",
		out:        &out,
	}
	cfg := &config.Config{Source: config.Source{Kind: config.SourceCSV, CSVPath: csvPath}}
	require.NoError(t, cmd.Run(context.Background(), cfg, testLogger()))

	var res struct {
		Units  string `json:"units"`
		Values []struct {
			Value float64 `json:"value"`
		} `json:"values"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "days", res.Units)
	require.Len(t, res.Values, 1)
	assert.Equal(t, 2.0, res.Values[0].Value)
}

func TestIndicesCmd_BadThreshold(t *testing.T) {
	cmd := IndicesCmd{Index: "maximum_consecutive_wet_days", Freq: "YS", Thresh: "wet"}
	cfg := &config.Config{Source: config.Source{Kind: config.SourceSynthetic}}
	assert.Error(t, cmd.Run(context.Background(), cfg, testLogger()))
}

func TestImportAndMigrate(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rain.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(`time,total_precipitation,latitude,longitude,location_id
2022-01-01,1,-41.29,174.78,
2022-01-02,2,-41.29,174.78,
2022-01-01,5,-36.85,174.76,akl
`), 0o644))

	cfg := &config.Config{
		Database: config.Database{Driver: config.DriverSQLite, Path: filepath.Join(dir, "rainmap.db")},
		Source:   config.Source{Kind: config.SourceDatabase},
	}
	ctx := context.Background()

	require.NoError(t, (&MigrateCmd{}).Run(ctx, cfg, testLogger()))
	require.NoError(t, (&ImportCmd{File: csvPath, LocationID: "wlg"}).Run(ctx, cfg, testLogger()))
	// Re-importing the same rows is a no-op.
	require.NoError(t, (&ImportCmd{File: csvPath, LocationID: "wlg"}).Run(ctx, cfg, testLogger()))

	fetcher := source.NewFetcher(source.NewDatabase(cfg.Database), "database", testLogger())
	ts, err := fetcher.Fetch(ctx, -41, 174)
	require.NoError(t, err)
	require.NotNil(t, ts.Station)
	assert.Equal(t, "wlg", ts.Station.ID)
	assert.Equal(t, []float64{1, 2}, ts.Values())
}
