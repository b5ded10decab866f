// Package indices computes climate indices over precipitation series:
// maximum n-day precipitation amount and maximum consecutive wet or dry days.
package indices

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lox/rainmap/internal/metrics"
	"github.com/lox/rainmap/internal/models"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidWindow    = errors.New("invalid window")
	ErrUnknownIndex     = errors.New("unknown index")
)

const (
	MaxNDayPrecipitationAmount = "max_n_day_precipitation_amount"
	MaxConsecutiveWetDays      = "maximum_consecutive_wet_days"
	MaxConsecutiveDryDays      = "maximum_consecutive_dry_days"
)

// Names lists the supported indices in display order.
var Names = []string{MaxNDayPrecipitationAmount, MaxConsecutiveWetDays, MaxConsecutiveDryDays}

const day = 24 * time.Hour

type Value struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

type Result struct {
	Name      string    `json:"name"`
	Units     string    `json:"units"`
	Frequency Frequency `json:"frequency"`
	Values    []Value   `json:"values"`
}

// Series is a precipitation series annotated as amounts (mm per step) and
// held as rates in mm/day.
type Series struct {
	times []time.Time
	rate  []float64
	step  time.Duration
}

// New annotates ts. The step is the most common spacing between consecutive
// timestamps; fewer than two points are treated as daily.
func New(ts models.TimeSeries) *Series {
	points := make([]models.Point, len(ts.Points))
	copy(points, ts.Points)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	s := &Series{
		times: make([]time.Time, len(points)),
		rate:  make([]float64, len(points)),
		step:  inferStep(points),
	}
	perDay := s.stepsPerDay()
	for i, p := range points {
		s.times[i] = p.Time.UTC()
		s.rate[i] = p.Precipitation * perDay
	}
	return s
}

func inferStep(points []models.Point) time.Duration {
	counts := make(map[time.Duration]int)
	for i := 1; i < len(points); i++ {
		if d := points[i].Time.Sub(points[i-1].Time); d > 0 {
			counts[d]++
		}
	}

	best, bestCount := day, 0
	for d, n := range counts {
		if n > bestCount || (n == bestCount && d < best) {
			best, bestCount = d, n
		}
	}
	return best
}

func (s *Series) Len() int            { return len(s.times) }
func (s *Series) Step() time.Duration { return s.step }
func (s *Series) Daily() bool         { return s.step == day }

// Rates returns the series in mm/day.
func (s *Series) Rates() []float64 {
	out := make([]float64, len(s.rate))
	copy(out, s.rate)
	return out
}

// stepsPerDay is exact for steps that divide a day, so hourly amounts
// convert to mm/day without rounding.
func (s *Series) stepsPerDay() float64 { return float64(day) / float64(s.step) }

func (s *Series) runUnits() string {
	if s.Daily() {
		return "days"
	}
	return "steps"
}

// MaxNDayPrecipitationAmount is the largest total over n consecutive steps in
// each period, in mm. A window is labelled by its last step and is skipped
// when any of its steps is missing. Periods without a complete window are
// omitted.
func (s *Series) MaxNDayPrecipitationAmount(n int, freq Frequency) (Result, error) {
	if n < 1 {
		return Result{}, fmt.Errorf("%w: n must be at least 1, got %d", ErrInvalidWindow, n)
	}
	res := Result{Name: MaxNDayPrecipitationAmount, Units: "mm", Frequency: freq, Values: []Value{}}

	perDay := s.stepsPerDay()
	for end := n - 1; end < len(s.times); end++ {
		sum := 0.0
		for i := end - n + 1; i <= end; i++ {
			sum += s.rate[i] / perDay
		}
		// NaN propagates through the sum.
		if math.IsNaN(sum) {
			continue
		}

		period := freq.PeriodStart(s.times[end])
		if last := len(res.Values) - 1; last >= 0 && res.Values[last].Period.Equal(period) {
			res.Values[last].Value = math.Max(res.Values[last].Value, sum)
			continue
		}
		res.Values = append(res.Values, Value{Period: period, Value: sum})
	}
	return res, nil
}

// MaxConsecutiveWetDays is the longest run of steps meeting thresh in each period.
func (s *Series) MaxConsecutiveWetDays(thresh Threshold, freq Frequency) Result {
	return s.longestRun(MaxConsecutiveWetDays, freq, thresh.Wet)
}

// MaxConsecutiveDryDays is the longest run of steps failing thresh in each period.
func (s *Series) MaxConsecutiveDryDays(thresh Threshold, freq Frequency) Result {
	return s.longestRun(MaxConsecutiveDryDays, freq, func(rate float64) bool { return !thresh.Wet(rate) })
}

// longestRun counts runs of steps satisfying match. Missing steps end a run
// and runs never span two periods.
func (s *Series) longestRun(name string, freq Frequency, match func(float64) bool) Result {
	res := Result{Name: name, Units: s.runUnits(), Frequency: freq, Values: []Value{}}

	run := 0
	for i, t := range s.times {
		period := freq.PeriodStart(t)
		last := len(res.Values) - 1
		if last < 0 || !res.Values[last].Period.Equal(period) {
			res.Values = append(res.Values, Value{Period: period})
			last++
			run = 0
		}

		if math.IsNaN(s.rate[i]) || !match(s.rate[i]) {
			run = 0
			continue
		}
		run++
		if float64(run) > res.Values[last].Value {
			res.Values[last].Value = float64(run)
		}
	}
	return res
}

type Params struct {
	N         int
	Freq      Frequency
	Threshold Threshold
}

// DefaultWindow is the n-day window used when none is given.
const DefaultWindow = 5

func DefaultParams() Params {
	return Params{N: DefaultWindow, Freq: Yearly, Threshold: DefaultThreshold}
}

// Compute runs the index called name.
func (s *Series) Compute(name string, p Params) (Result, error) {
	if p.Freq == "" {
		p.Freq = Yearly
	}

	var (
		res Result
		err error
	)
	switch name {
	case MaxNDayPrecipitationAmount:
		res, err = s.MaxNDayPrecipitationAmount(p.N, p.Freq)
	case MaxConsecutiveWetDays:
		res = s.MaxConsecutiveWetDays(p.Threshold, p.Freq)
	case MaxConsecutiveDryDays:
		res = s.MaxConsecutiveDryDays(p.Threshold, p.Freq)
	default:
		metrics.IndexComputationsTotal.WithLabelValues("unknown", "error").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownIndex, name)
	}

	if err != nil {
		metrics.IndexComputationsTotal.WithLabelValues(name, "error").Inc()
		return Result{}, err
	}
	metrics.IndexComputationsTotal.WithLabelValues(name, "ok").Inc()
	return res, nil
}
