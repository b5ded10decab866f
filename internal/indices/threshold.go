package indices

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Threshold splits steps into wet and dry by precipitation rate.
type Threshold struct {
	Value     float64 // mm/day
	Inclusive bool    // wet when rate >= Value, otherwise rate > Value
}

// DefaultThreshold is the conventional wet day: at least 1 mm/day.
var DefaultThreshold = Threshold{Value: 1, Inclusive: true}

var thresholdPattern = regexp.MustCompile(`^(>=|>)?\s*([+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(mm/d|mm/day|mm/h|mm/hr)$`)

// ParseThreshold reads thresholds such as "1 mm/d", "> 0 mm/day" or
// ">=0.5mm/h". Hourly rates are converted to mm/day. Without an operator
// the comparison is >=.
func ParseThreshold(s string) (Threshold, error) {
	m := thresholdPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Threshold{}, fmt.Errorf("%w: %q (want e.g. \"1 mm/d\" or \"> 0 mm/h\")", ErrInvalidThreshold, s)
	}

	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("%w: %q: %w", ErrInvalidThreshold, s, err)
	}
	if m[3] == "mm/h" || m[3] == "mm/hr" {
		v *= 24
	}
	return Threshold{Value: v, Inclusive: m[1] != ">"}, nil
}

// Wet reports whether a rate in mm/day satisfies the threshold.
func (t Threshold) Wet(rate float64) bool {
	if t.Inclusive {
		return rate >= t.Value
	}
	return rate > t.Value
}

func (t Threshold) String() string {
	op := ">"
	if t.Inclusive {
		op = ">="
	}
	return fmt.Sprintf("%s %s mm/d", op, strconv.FormatFloat(t.Value, 'g', -1, 64))
}
