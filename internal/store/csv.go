package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/rainmap/internal/models"
)

// CSV columns. time and total_precipitation are required, the station
// columns are needed only when importing into a database.
const (
	colTime          = "time"
	colPrecipitation = "total_precipitation"
	colLatitude      = "latitude"
	colLongitude     = "longitude"
	colLocationID    = "location_id"
)

var csvTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSV parses observations from a headed CSV file. Blank precipitation
// cells become NaN. Timestamps without a zone are read as UTC.
func ReadCSV(r io.Reader) ([]models.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colTime, colPrecipitation} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv: missing %q column", required)
		}
	}

	var out []models.Observation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		obs, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

func parseRecord(record []string, cols map[string]int) (models.Observation, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	var obs models.Observation

	raw, _ := field(colTime)
	at, err := parseCSVTime(raw)
	if err != nil {
		return obs, err
	}
	obs.Time = at

	obs.Precipitation = math.NaN()
	if v, _ := field(colPrecipitation); v != "" && !strings.EqualFold(v, "nan") {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return obs, fmt.Errorf("total_precipitation %q: %w", v, err)
		}
		if math.IsInf(f, 0) {
			return obs, fmt.Errorf("total_precipitation %q: not a finite number", v)
		}
		obs.Precipitation = f
	}

	if v, ok := field(colLatitude); ok && v != "" {
		if obs.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			return obs, fmt.Errorf("latitude %q: %w", v, err)
		}
		if math.IsNaN(obs.Latitude) || math.IsInf(obs.Latitude, 0) {
			return obs, fmt.Errorf("latitude %q: not a finite number", v)
		}
	}
	if v, ok := field(colLongitude); ok && v != "" {
		if obs.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			return obs, fmt.Errorf("longitude %q: %w", v, err)
		}
		if math.IsNaN(obs.Longitude) || math.IsInf(obs.Longitude, 0) {
			return obs, fmt.Errorf("longitude %q: not a finite number", v)
		}
	}
	obs.LocationID, _ = field(colLocationID)

	return obs, nil
}

func parseCSVTime(s string) (time.Time, error) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("time %q: unrecognised format", s)
}
