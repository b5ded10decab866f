package indices

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rainmap/internal/models"
)

func daily(start time.Time, values ...float64) models.TimeSeries {
	var ts models.TimeSeries
	for i, v := range values {
		ts.Points = append(ts.Points, models.Point{Time: start.AddDate(0, 0, i), Precipitation: v})
	}
	return ts
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func values(res Result) []float64 {
	out := make([]float64, len(res.Values))
	for i, v := range res.Values {
		out[i] = v.Value
	}
	return out
}

func TestAlternatingWetDry(t *testing.T) {
	vals := make([]float64, 365)
	for i := range vals {
		if i%2 == 1 {
			vals[i] = 10
		}
	}
	s := New(daily(date(2022, 1, 1), vals...))
	thresh, err := ParseThreshold("> 0 mm/d")
	require.NoError(t, err)

	wet := s.MaxConsecutiveWetDays(thresh, Yearly)
	dry := s.MaxConsecutiveDryDays(thresh, Yearly)

	assert.Equal(t, []Value{{Period: date(2022, 1, 1), Value: 1}}, wet.Values)
	assert.Equal(t, []Value{{Period: date(2022, 1, 1), Value: 1}}, dry.Values)
	assert.Equal(t, "days", wet.Units)
}

func TestComputeIsIdempotent(t *testing.T) {
	ts := daily(date(2022, 1, 1), 0, 3, 5, 0, 0, 2, 8, 1)
	s := New(ts)
	p := DefaultParams()
	p.N = 3

	for _, name := range Names {
		first, err := s.Compute(name, p)
		require.NoError(t, err)
		second, err := s.Compute(name, p)
		require.NoError(t, err)
		again, err := New(ts).Compute(name, p)
		require.NoError(t, err)

		assert.Equal(t, first, second, name)
		assert.Equal(t, first, again, name)
	}
}

func TestEmptySeries(t *testing.T) {
	s := New(models.TimeSeries{})
	assert.Equal(t, day, s.Step())

	for _, name := range Names {
		res, err := s.Compute(name, DefaultParams())
		require.NoError(t, err, name)
		assert.NotNil(t, res.Values, name)
		assert.Empty(t, res.Values, name)
	}
}

func TestMaxNDayPrecipitationAmount(t *testing.T) {
	s := New(daily(date(2022, 1, 1), 1, 2, 3, math.NaN(), 5, 6))

	res, err := s.MaxNDayPrecipitationAmount(2, Yearly)
	require.NoError(t, err)
	assert.Equal(t, "mm", res.Units)
	assert.Equal(t, []float64{11}, values(res))

	res, err = s.MaxNDayPrecipitationAmount(1, Yearly)
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, values(res))

	res, err = s.MaxNDayPrecipitationAmount(3, Yearly)
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, values(res))
}

func TestMaxNDayPrecipitationAmount_LabelsWindowByLastStep(t *testing.T) {
	s := New(daily(date(2022, 1, 30), 10, 0, 10, 0))

	res, err := s.MaxNDayPrecipitationAmount(2, Monthly)
	require.NoError(t, err)
	assert.Equal(t, []Value{
		{Period: date(2022, 1, 1), Value: 10},
		{Period: date(2022, 2, 1), Value: 10},
	}, res.Values)
}

func TestMaxNDayPrecipitationAmount_OmitsPeriodsWithoutWindow(t *testing.T) {
	s := New(daily(date(2022, 1, 31), 4, 5, math.NaN()))

	res, err := s.MaxNDayPrecipitationAmount(2, Monthly)
	require.NoError(t, err)
	assert.Equal(t, []Value{{Period: date(2022, 2, 1), Value: 9}}, res.Values)

	res, err = New(daily(date(2022, 1, 1), 4)).MaxNDayPrecipitationAmount(2, Yearly)
	require.NoError(t, err)
	assert.Empty(t, res.Values)
}

func TestMaxNDayPrecipitationAmount_InvalidWindow(t *testing.T) {
	_, err := New(daily(date(2022, 1, 1), 1, 2)).MaxNDayPrecipitationAmount(0, Yearly)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestRunsDoNotCrossPeriods(t *testing.T) {
	s := New(daily(date(2021, 12, 29), 0, 5, 5, 5, 5, 0))

	res := s.MaxConsecutiveWetDays(DefaultThreshold, Yearly)
	assert.Equal(t, []Value{
		{Period: date(2021, 1, 1), Value: 2},
		{Period: date(2022, 1, 1), Value: 2},
	}, res.Values)
}

func TestMissingStepsBreakRuns(t *testing.T) {
	nan := math.NaN()
	s := New(daily(date(2022, 1, 1), 5, 5, nan, 5, 0, nan, 0, 0))

	assert.Equal(t, []float64{2}, values(s.MaxConsecutiveWetDays(DefaultThreshold, Yearly)))
	assert.Equal(t, []float64{2}, values(s.MaxConsecutiveDryDays(DefaultThreshold, Yearly)))
}

func TestPeriodWithoutQualifyingStepIsZero(t *testing.T) {
	s := New(daily(date(2022, 1, 31), 0, 0))

	res := s.MaxConsecutiveWetDays(DefaultThreshold, Monthly)
	assert.Equal(t, []Value{
		{Period: date(2022, 1, 1), Value: 0},
		{Period: date(2022, 2, 1), Value: 0},
	}, res.Values)
}

func TestThresholdInclusivity(t *testing.T) {
	s := New(daily(date(2022, 1, 1), 1, 1, 1))

	inclusive, err := ParseThreshold("1 mm/d")
	require.NoError(t, err)
	exclusive, err := ParseThreshold(">1 mm/d")
	require.NoError(t, err)

	assert.Equal(t, []float64{3}, values(s.MaxConsecutiveWetDays(inclusive, Yearly)))
	assert.Equal(t, []float64{0}, values(s.MaxConsecutiveWetDays(exclusive, Yearly)))
	assert.Equal(t, []float64{3}, values(s.MaxConsecutiveDryDays(exclusive, Yearly)))
}

func TestHourlySeries(t *testing.T) {
	start := date(2022, 1, 1)
	var ts models.TimeSeries
	for i := range 48 {
		ts.Points = append(ts.Points, models.Point{Time: start.Add(time.Duration(i) * time.Hour), Precipitation: 0.5})
	}
	s := New(ts)

	assert.Equal(t, time.Hour, s.Step())
	assert.False(t, s.Daily())
	assert.Equal(t, 12.0, s.Rates()[0])

	res, err := s.MaxNDayPrecipitationAmount(24, Yearly)
	require.NoError(t, err)
	require.Len(t, res.Values, 1)
	assert.InDelta(t, 12, res.Values[0].Value, 1e-9)

	// 0.5 mm/h is exactly 12 mm/d, so an inclusive 12 mm/d threshold is met.
	wet := s.MaxConsecutiveWetDays(Threshold{Value: 12, Inclusive: true}, Yearly)
	assert.Equal(t, "steps", wet.Units)
	assert.Equal(t, []float64{48}, values(wet))

	perHour, err := ParseThreshold("> 0.5 mm/h")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, values(s.MaxConsecutiveWetDays(perHour, Yearly)))
}

func TestInferStep_MostCommonSpacing(t *testing.T) {
	ts := models.TimeSeries{Points: []models.Point{
		{Time: date(2022, 1, 1)},
		{Time: date(2022, 1, 2)},
		{Time: date(2022, 1, 3)},
		{Time: date(2022, 1, 8)},
		{Time: date(2022, 1, 9)},
	}}
	assert.Equal(t, day, New(ts).Step())

	single := models.TimeSeries{Points: []models.Point{{Time: date(2022, 1, 1), Precipitation: 3}}}
	assert.Equal(t, day, New(single).Step())
	assert.Equal(t, []float64{3}, New(single).Rates())
}

func TestCompute(t *testing.T) {
	s := New(daily(date(2022, 1, 1), 2, 2, 0))

	res, err := s.Compute(MaxConsecutiveWetDays, Params{Threshold: DefaultThreshold})
	require.NoError(t, err)
	assert.Equal(t, Yearly, res.Frequency)
	assert.Equal(t, []float64{2}, values(res))

	_, err = s.Compute("percentile_precipitation", DefaultParams())
	assert.ErrorIs(t, err, ErrUnknownIndex)

	_, err = s.Compute(MaxNDayPrecipitationAmount, Params{N: -1})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		freq Frequency
		in   time.Time
		want time.Time
	}{
		{Yearly, date(2022, 7, 14), date(2022, 1, 1)},
		{Monthly, date(2022, 5, 31), date(2022, 5, 1)},
		{Quarterly, date(2022, 5, 5), date(2022, 4, 1)},
		{Quarterly, date(2022, 12, 31), date(2022, 10, 1)},
		{Seasonal, date(2022, 1, 15), date(2021, 12, 1)},
		{Seasonal, date(2022, 2, 28), date(2021, 12, 1)},
		{Seasonal, date(2022, 12, 10), date(2022, 12, 1)},
		{Seasonal, date(2022, 3, 1), date(2022, 3, 1)},
		{Seasonal, date(2022, 8, 31), date(2022, 6, 1)},
		{Seasonal, date(2022, 11, 30), date(2022, 9, 1)},
		{Yearly, time.Date(2022, 1, 1, 5, 0, 0, 0, time.FixedZone("NZDT", 13*3600)), date(2021, 1, 1)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.freq.PeriodStart(tt.in), "%s %s", tt.freq, tt.in)
	}
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]Frequency{
		"":       Yearly,
		"YS":     Yearly,
		"as":     Yearly,
		"QS-DEC": Seasonal,
		"qs":     Quarterly,
		"MS":     Monthly,
	} {
		got, err := ParseFrequency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFrequency("W")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in   string
		want Threshold
	}{
		{"1 mm/d", Threshold{Value: 1, Inclusive: true}},
		{"1mm/day", Threshold{Value: 1, Inclusive: true}},
		{"> 0 mm/d", Threshold{Value: 0, Inclusive: false}},
		{">=2.5 mm/day", Threshold{Value: 2.5, Inclusive: true}},
		{"0.5 mm/h", Threshold{Value: 12, Inclusive: true}},
		{" > 1 MM/HR ", Threshold{Value: 24, Inclusive: false}},
	}
	for _, tt := range tests {
		got, err := ParseThreshold(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"", "1", "1 in/d", "-1 mm/d", "< 1 mm/d", "lots mm/d"} {
		_, err := ParseThreshold(in)
		assert.ErrorIs(t, err, ErrInvalidThreshold, in)
	}

	assert.Equal(t, ">= 1 mm/d", DefaultThreshold.String())
}
