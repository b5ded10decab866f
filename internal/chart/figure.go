// Package chart turns series and index results into figures: two parallel
// sequences the browser plots, or that RenderPNG draws server side.
package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lox/rainmap/internal/indices"
	"github.com/lox/rainmap/internal/models"
)

type Kind string

const (
	Line Kind = "line"
	Bar  Kind = "bar"
)

type Figure struct {
	Title  string
	Kind   Kind
	XLabel string
	YLabel string
	X      []time.Time
	Y      []float64 // NaN for a missing value
}

func (f Figure) Len() int { return len(f.X) }

// Empty reports whether the figure has nothing to plot.
func (f Figure) Empty() bool {
	for _, y := range f.Y {
		if !math.IsNaN(y) {
			return false
		}
	}
	return true
}

// FromSeries plots precipitation amounts over time.
func FromSeries(ts models.TimeSeries, title string) Figure {
	return Figure{
		Title:  title,
		Kind:   Line,
		XLabel: "Time",
		YLabel: "Precipitation (mm)",
		X:      ts.Times(),
		Y:      ts.Values(),
	}
}

// FromIndex plots one bar per reporting period.
func FromIndex(res indices.Result, title string) Figure {
	fig := Figure{
		Title:  title,
		Kind:   Bar,
		XLabel: fmt.Sprintf("Period (%s)", res.Frequency),
		YLabel: fmt.Sprintf("%s (%s)", res.Name, res.Units),
		X:      make([]time.Time, len(res.Values)),
		Y:      make([]float64, len(res.Values)),
	}
	for i, v := range res.Values {
		fig.X[i] = v.Period
		fig.Y[i] = v.Value
	}
	return fig
}

type figureJSON struct {
	Title  string     `json:"title"`
	Kind   Kind       `json:"kind"`
	XLabel string     `json:"x_label"`
	YLabel string     `json:"y_label"`
	X      []string   `json:"x"`
	Y      []*float64 `json:"y"`
}

// MarshalJSON writes times as RFC 3339 and NaN values as null.
func (f Figure) MarshalJSON() ([]byte, error) {
	if len(f.X) != len(f.Y) {
		return nil, fmt.Errorf("figure has %d x values and %d y values", len(f.X), len(f.Y))
	}
	out := figureJSON{
		Title:  f.Title,
		Kind:   f.Kind,
		XLabel: f.XLabel,
		YLabel: f.YLabel,
		X:      make([]string, len(f.X)),
		Y:      make([]*float64, len(f.Y)),
	}
	for i, t := range f.X {
		out.X[i] = t.UTC().Format(time.RFC3339)
	}
	for i := range f.Y {
		if math.IsNaN(f.Y[i]) || math.IsInf(f.Y[i], 0) {
			continue
		}
		out.Y[i] = &f.Y[i]
	}
	return json.Marshal(out)
}
