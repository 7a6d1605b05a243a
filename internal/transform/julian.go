// Package transform provides time-scale and reference-frame conversions for
// heliocentric trajectories.
package transform

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const J2000 = 2451545.0

// JulianDate converts t to a Julian Date. Any zone offset is applied first;
// sub-second precision is kept.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// TimeFromJD converts a Julian Date to a UTC time.
func TimeFromJD(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}

// CivilJD converts t to a Julian Date using whole civil-date components
// (seconds precision). Used for the snapshot header.
func CivilJD(t time.Time) float64 {
	t = t.UTC()
	return satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}
