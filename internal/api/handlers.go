package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lox/rainmap/internal/chart"
	"github.com/lox/rainmap/internal/indices"
	"github.com/lox/rainmap/internal/models"
	"github.com/lox/rainmap/internal/source"
)

// Map defaults for the dashboard.
const (
	mapCenterLat   = -41.0
	mapCenterLon   = 174.0
	mapZoom        = 4
	wellingtonLat  = -41.28664
	wellingtonLon  = 174.77557
	wellingtonZoom = 10

	defaultChartWidth  = 800
	defaultChartHeight = 400
	maxChartSize       = 2000
)

var errBadParam = errors.New("bad parameter")

type IndexPage struct {
	CenterLat, CenterLon float64
	Zoom                 int
	FlyToLat, FlyToLon   float64
	FlyToZoom            int
	Source               string
	Indices              []string
	DefaultWindow        int
	Frequencies          []indices.Frequency
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := IndexPage{
		CenterLat:     mapCenterLat,
		CenterLon:     mapCenterLon,
		Zoom:          mapZoom,
		FlyToLat:      wellingtonLat,
		FlyToLon:      wellingtonLon,
		FlyToZoom:     wellingtonZoom,
		Source:        s.fetcher.Name(),
		Indices:       indices.Names,
		DefaultWindow: indices.DefaultWindow,
		Frequencies:   []indices.Frequency{indices.Yearly, indices.Seasonal, indices.Quarterly, indices.Monthly},
	}
	s.render(w, "index.html", page)
}

type TimeseriesPartial struct {
	Heading string
	Station *models.Station
	Points  int
	Total   float64
	Empty   bool
	Figure  string
}

func (s *Server) handleTimeseriesPartial(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinate(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	ts, err := s.fetcher.Fetch(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, err)
		return
	}

	heading := seriesTitle(lat, lon)
	figure, err := json.Marshal(chart.FromSeries(ts, heading))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.render(w, "timeseries.html", TimeseriesPartial{
		Heading: heading,
		Station: ts.Station,
		Points:  ts.Len(),
		Total:   ts.Total(),
		Empty:   ts.Empty(),
		Figure:  string(figure),
	})
}

func (s *Server) handleAPITimeseries(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseCoordinate(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	ts, err := s.fetcher.Fetch(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, chart.FromSeries(ts, seriesTitle(lat, lon)))
}

type IndexResponse struct {
	Station *models.Station `json:"station"`
	Result  indices.Result  `json:"result"`
	Figure  chart.Figure    `json:"figure"`
}

func (s *Server) handleAPIIndices(w http.ResponseWriter, r *http.Request) {
	resp, err := s.computeIndex(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) computeIndex(r *http.Request) (IndexResponse, error) {
	q := r.URL.Query()
	lat, lon, err := parseCoordinate(q)
	if err != nil {
		return IndexResponse{}, err
	}
	name, params, err := parseIndexParams(q)
	if err != nil {
		return IndexResponse{}, err
	}

	ts, err := s.fetcher.Fetch(r.Context(), lat, lon)
	if err != nil {
		return IndexResponse{}, err
	}
	res, err := indices.New(ts).Compute(name, params)
	if err != nil {
		return IndexResponse{}, err
	}

	title := fmt.Sprintf("%s for %s, %s", name, formatCoord(lat), formatCoord(lon))
	return IndexResponse{Station: ts.Station, Result: res, Figure: chart.FromIndex(res, title)}, nil
}

func (s *Server) handleAPIStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.fetcher.Stations(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}
	s.writeJSON(w, http.StatusOK, stations)
}

// handleChartPNG draws the series, or the index named by ?index=, as a PNG.
func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, err := parseSize(q, "width", defaultChartWidth)
	if err != nil {
		s.writeError(w, err)
		return
	}
	height, err := parseSize(q, "height", defaultChartHeight)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var fig chart.Figure
	if q.Get("index") != "" {
		resp, err := s.computeIndex(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		fig = resp.Figure
	} else {
		lat, lon, err := parseCoordinate(q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		ts, err := s.fetcher.Fetch(r.Context(), lat, lon)
		if err != nil {
			s.writeError(w, err)
			return
		}
		fig = chart.FromSeries(ts, seriesTitle(lat, lon))
	}

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, fig, width, height); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

func seriesTitle(lat, lon float64) string {
	return fmt.Sprintf("Time Series for %s, %s", formatCoord(lat), formatCoord(lon))
}

func parseCoordinate(q url.Values) (lat, lon float64, err error) {
	if lat, err = parseFloat(q, "lat"); err != nil {
		return 0, 0, err
	}
	if lon, err = parseFloat(q, "lon"); err != nil {
		return 0, 0, err
	}
	return lat, lon, source.ValidateCoordinate(lat, lon)
}

func parseFloat(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", errBadParam, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", errBadParam, name, raw)
	}
	return v, nil
}

func parseSize(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > maxChartSize {
		return 0, fmt.Errorf("%w: %s must be between 1 and %d, got %q", errBadParam, name, maxChartSize, raw)
	}
	return v, nil
}

func parseIndexParams(q url.Values) (string, indices.Params, error) {
	params := indices.DefaultParams()

	name := q.Get("index")
	if name == "" {
		name = indices.MaxNDayPrecipitationAmount
	}

	if raw := q.Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", params, fmt.Errorf("%w: n must be an integer, got %q", errBadParam, raw)
		}
		params.N = n
	}

	freq, err := indices.ParseFrequency(q.Get("freq"))
	if err != nil {
		return "", params, err
	}
	params.Freq = freq

	if raw := q.Get("thresh"); raw != "" {
		if params.Threshold, err = indices.ParseThreshold(raw); err != nil {
			return "", params, err
		}
	}
	return name, params, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, source.ErrInvalidCoordinate),
		errors.Is(err, indices.ErrInvalidFrequency),
		errors.Is(err, indices.ErrInvalidThreshold),
		errors.Is(err, indices.ErrInvalidWindow),
		errors.Is(err, indices.ErrUnknownIndex):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = http.StatusText(status)
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	// Encode before writing the header so a failure can still become a 500.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"Internal Server Error"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
