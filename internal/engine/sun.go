package engine

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Used when no location is configured or the sun does not rise/set that day.
const (
	fallbackSunriseMinute = 7 * 60
	fallbackSunsetMinute  = 20 * 60
)

// SunClock returns the local sunrise and sunset minute-of-day for day.
type SunClock interface {
	SunMinutes(day time.Time) (sunrise, sunset int)
}

// FixedSun always reports the fallback 07:00 / 20:00.
type FixedSun struct{}

func (FixedSun) SunMinutes(time.Time) (int, int) {
	return fallbackSunriseMinute, fallbackSunsetMinute
}

// Almanac computes sun events for a coordinate.
type Almanac struct {
	Latitude  float64
	Longitude float64
}

func (a Almanac) SunMinutes(day time.Time) (int, int) {
	rise, set := sunrise.SunriseSunset(a.Latitude, a.Longitude, day.Year(), day.Month(), day.Day())
	if rise.IsZero() || set.IsZero() {
		return fallbackSunriseMinute, fallbackSunsetMinute
	}
	loc := day.Location()
	return minuteOfDay(rise.In(loc)), minuteOfDay(set.In(loc))
}

func minuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

func dayKey(t time.Time) string { return t.Format("2006-01-02") }
