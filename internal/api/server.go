package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/rainmap/internal/logging"
	"github.com/lox/rainmap/internal/source"
)

type Options struct {
	Addr      string
	Container string
}

type Server struct {
	fetcher   *source.Fetcher
	addr      string
	container string
	logger    *slog.Logger
	tmpl      *template.Template
}

func NewServer(fetcher *source.Fetcher, opts Options, logger *slog.Logger) *Server {
	return &Server{
		fetcher:   fetcher,
		addr:      opts.Addr,
		container: opts.Container,
		logger:    logger,
		tmpl:      newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /partials/timeseries", s.handleTimeseriesPartial)
	mux.HandleFunc("GET /api/timeseries", s.handleAPITimeseries)
	mux.HandleFunc("GET /api/indices", s.handleAPIIndices)
	mux.HandleFunc("GET /api/stations", s.handleAPIStations)
	mux.HandleFunc("GET /chart.png", s.handleChartPNG)
	mux.Handle("GET /metrics", promhttp.Handler())
	return logging.AccessMiddleware(s.logger)(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", s.addr, "source", s.fetcher.Name())
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status    string `json:"status"`
	Source    string `json:"source"`
	Container string `json:"container,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "ok",
		Source:    s.fetcher.Name(),
		Container: s.container,
	})
}
