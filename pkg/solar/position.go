// Package solar locates the sun in the local sky for a place and wall-clock
// instant, using the low-precision solar ephemeris (accurate to about 0.01
// degree between 1950 and 2050).
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/unit"

	"github.com/chrissnell/pvyield/pkg/geo"
)

// J2000 is the Julian date of 2000-01-01 12:00 TT.
const J2000 = 2451545.0

// DefaultUTCOffset is the offset of the weather archive's timestamps from UT.
// The archive is recorded in Central European (standard) Time.
const DefaultUTCOffset = time.Hour

// Position is the sun's place in the local sky, in degrees.
// Azimuth is measured clockwise from north.
type Position struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// JulianDate splits an instant into the Julian date of the preceding
// midnight and the fraction of the day elapsed since.
type JulianDate struct {
	Day         float64
	DayFraction float64
	// UTHours is the universal time of day in hours.
	UTHours float64
}

// Date is the full (fractional) Julian date.
func (j JulianDate) Date() float64 {
	return j.Day + j.DayFraction
}

// ToJulian converts a UT wall-clock time to a JulianDate. Seconds are ignored;
// the archive is minute-resolved.
func ToJulian(t time.Time) JulianDate {
	day := julian.CalendarGregorianToJD(t.Year(), int(t.Month()), float64(t.Day()))
	return JulianDate{
		Day:         day,
		DayFraction: float64(t.Hour())/24 + float64(t.Minute())/1440,
		UTHours:     float64(t.Hour()) + float64(t.Minute())/60,
	}
}

// Calculator computes low-precision sun positions (about 0.01 deg between
// 1950 and 2050). The zero value assumes timestamps are already UT.
type Calculator struct {
	// UTCOffset is subtracted from the wall-clock time before the conversion.
	UTCOffset time.Duration
}

// NewCalculator returns a Calculator for timestamps recorded at utcOffset.
func NewCalculator(utcOffset time.Duration) Calculator {
	return Calculator{UTCOffset: utcOffset}
}

// Position returns the sun's azimuth and elevation at loc for the local
// wall-clock time t. The location of t is ignored, only its fields are read.
func (c Calculator) Position(loc geo.Location, t time.Time) Position {
	jd := ToJulian(t.Add(-c.UTCOffset))
	n := jd.Date() - J2000

	// ecliptic coordinates
	meanLongitude := unit.PMod(280.460+0.9856474*n, 360)
	meanAnomaly := unit.AngleFromDeg(unit.PMod(357.528+0.9856003*n, 360))
	lambda := unit.AngleFromDeg(meanLongitude + 1.915*meanAnomaly.Sin() + 0.01997*meanAnomaly.Mul(2).Sin())
	epsilon := unit.AngleFromDeg(23.439 - 0.0000004*n)

	// equatorial coordinates
	sinLambda, cosLambda := lambda.Sincos()
	rightAscension := unit.Angle(math.Atan2(epsilon.Cos()*sinLambda, cosLambda))
	declination := unit.Angle(math.Asin(epsilon.Sin() * sinLambda))

	// horizontal coordinates
	hourAngle := unit.AngleFromDeg(localSiderealDegrees(jd, loc.Longitude) - rightAscension.Deg())
	lat := unit.AngleFromDeg(loc.Latitude)

	return Position{
		Azimuth:   azimuth(hourAngle, lat, declination),
		Elevation: elevation(hourAngle, lat, declination),
	}
}

// localSiderealDegrees is the hour angle of the vernal equinox at longitude lon.
func localSiderealDegrees(jd JulianDate, lon float64) float64 {
	t0 := (jd.Day - J2000) / 36525
	gmst := unit.PMod(6.697376+2400.05134*t0+1.002738*jd.UTHours, 24)
	return gmst*15 + lon
}

func elevation(h, lat, dec unit.Angle) float64 {
	return unit.Angle(math.Asin(dec.Cos()*h.Cos()*lat.Cos() + dec.Sin()*lat.Sin())).Deg()
}

// azimuth uses atan with a fixed 180 deg offset rather than atan2, so the
// result always lies in (90, 270). When the denominator is negative (the sun
// north of the east-west line, e.g. early summer mornings at mid latitudes)
// the true azimuth is in the other half-plane.
func azimuth(h, lat, dec unit.Angle) float64 {
	return unit.Angle(math.Atan(h.Sin()/(h.Cos()*lat.Sin()-dec.Tan()*lat.Cos()))).Deg() + 180
}
