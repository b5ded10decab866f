package models

import (
	"fmt"
	"math"
	"time"
)

type Station struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Observation is one stored row: a precipitation amount recorded by a station at a time.
type Observation struct {
	LocationID    string
	Time          time.Time
	Latitude      float64
	Longitude     float64
	Precipitation float64 // mm per time step, NaN when missing
}

type Point struct {
	Time          time.Time
	Precipitation float64 // mm per time step, NaN when missing
}

// TimeSeries is an ordered run of observations for a single station.
// Station is nil for backends without a station concept.
type TimeSeries struct {
	Station *Station
	Points  []Point
}

func (ts TimeSeries) Len() int    { return len(ts.Points) }
func (ts TimeSeries) Empty() bool { return len(ts.Points) == 0 }

func (ts TimeSeries) Times() []time.Time {
	out := make([]time.Time, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Time
	}
	return out
}

func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Precipitation
	}
	return out
}

// Validate checks that timestamps are strictly increasing.
func (ts TimeSeries) Validate() error {
	for i := 1; i < len(ts.Points); i++ {
		if !ts.Points[i].Time.After(ts.Points[i-1].Time) {
			return fmt.Errorf("timestamps not strictly increasing at index %d (%s after %s)",
				i, ts.Points[i].Time.Format(time.RFC3339), ts.Points[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Total sums the non-missing amounts.
func (ts TimeSeries) Total() float64 {
	var sum float64
	for _, p := range ts.Points {
		if !math.IsNaN(p.Precipitation) {
			sum += p.Precipitation
		}
	}
	return sum
}
