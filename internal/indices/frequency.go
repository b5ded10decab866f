package indices

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a resampling frequency code. Periods are labelled by their
// first instant and computed in UTC.
type Frequency string

const (
	Yearly    Frequency = "YS"
	Seasonal  Frequency = "QS-DEC"
	Quarterly Frequency = "QS"
	Monthly   Frequency = "MS"
)

// ParseFrequency accepts YS (or its alias AS), QS-DEC, QS and MS. An empty
// string means YS.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "YS", "AS", "YS-JAN", "AS-JAN":
		return Yearly, nil
	case "QS-DEC":
		return Seasonal, nil
	case "QS", "QS-JAN":
		return Quarterly, nil
	case "MS":
		return Monthly, nil
	default:
		return "", fmt.Errorf("%w: %q (want YS, QS-DEC, QS or MS)", ErrInvalidFrequency, s)
	}
}

// PeriodStart returns the start of the period containing t.
func (f Frequency) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	y, m := t.Year(), int(t.Month())

	var back int
	switch f {
	case Yearly:
		back = m - 1
	case Seasonal:
		// DJF, MAM, JJA, SON
		back = (m % 12) % 3
	case Quarterly:
		back = (m - 1) % 3
	}
	// time.Date normalises month 0 and below into the previous year.
	return time.Date(y, time.Month(m-back), 1, 0, 0, 0, 0, time.UTC)
}

func (f Frequency) String() string { return string(f) }
