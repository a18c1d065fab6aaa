package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null"
)

const secondsPerDay = 24 * 60 * 60

var dobLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"01/02/2006",
}

// ParseDOB parses a date of birth in any of the accepted layouts and
// returns it truncated to its UTC day.
func ParseDOB(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utcDay(t), true
		}
	}
	return time.Time{}, false
}

// Age is floor(days between dob and runDate / 365). A missing or
// unparseable dob, or one after runDate, gives a null age.
//
// The value depends on runDate: rerunning on identical data on a later day
// can only keep or raise each age.
func Age(dob null.String, runDate time.Time) null.Int {
	if !dob.Valid {
		return null.Int{}
	}
	born, ok := ParseDOB(dob.String)
	if !ok {
		return null.Int{}
	}
	ref := utcDay(runDate)
	if born.After(ref) {
		return null.Int{}
	}
	days := (ref.Unix() - born.Unix()) / secondsPerDay
	return null.IntFrom(days / 365)
}

// Coordinate returns v as a float, or 0.0 when it is absent, not numeric,
// or not finite.
func Coordinate(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0.0
		}
		f = parsed
	default:
		return 0.0
	}
	if !finite(f) {
		return 0.0
	}
	return f
}

// defaulted reports whether Coordinate(v) falls back to 0.0.
func defaulted(v any) bool {
	switch x := v.(type) {
	case float64:
		return !finite(x)
	case int64:
		return false
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err != nil || !finite(f)
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
