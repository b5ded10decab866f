package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/rainmap/internal/config"
	"github.com/lox/rainmap/internal/indices"
	"github.com/lox/rainmap/internal/logging"
)

type CLI struct {
	Config config.Config `embed:""`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the dashboard HTTP server."`
	Fetch   FetchCmd   `cmd:"" help:"Print the time series nearest a coordinate as JSON."`
	Indices IndicesCmd `cmd:"" help:"Compute a climate index for the station nearest a coordinate."`
	Import  ImportCmd  `cmd:"" help:"Load observations from a CSV file into the database."`
	Migrate MigrateCmd `cmd:"" help:"Apply database migrations."`
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("rainmap"),
		kong.Description("Precipitation statistics for the weather station nearest a map click."),
		kong.UsageOnError(),
		kong.Vars{"default_window": strconv.Itoa(indices.DefaultWindow)},
		// Southern and western coordinates are negative.
		kong.WithHyphenPrefixedParameters(true),
	}
}

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli, parserOptions()...)
	kctx.FatalIfErrorf(cli.Config.Validate())

	logger := logging.New(os.Stderr, cli.Config, "rainmap")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&cli.Config, logger); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
