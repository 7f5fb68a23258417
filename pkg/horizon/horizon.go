// Package horizon builds a module's skyline: the elevation of the surrounding
// obstacles for every whole-degree azimuth, merged from one or more surveys.
package horizon

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// Buckets is the number of azimuth buckets in a skyline, one per degree.
const Buckets = 360

// ErrNoObservations is returned by Build when the surveys hold no sample.
var ErrNoObservations = errors.New("horizon: no obstacle samples")

// Sample is one surveyed point of the horizon, in degrees.
type Sample struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// Dataset is a single survey of the horizon around a module.
type Dataset struct {
	ID      float64  `json:"dataSetID"`
	Samples []Sample `json:"dataPoints"`
}

// Skyline maps every azimuth bucket (0 = north, clockwise) to the elevation
// above which the sun is unobstructed. Buckets are circular: 359 neighbors 0.
type Skyline [Buckets]float64

// At returns the obstacle elevation for a (possibly fractional or out of
// range) azimuth. The azimuth is truncated to its bucket and wrapped.
func (s *Skyline) At(azimuth float64) float64 {
	return s[Bucket(azimuth)]
}

// Bucket truncates an azimuth to a whole degree and wraps it into [0, 360).
func Bucket(azimuth float64) int {
	b := int(azimuth) % Buckets
	if b < 0 {
		b += Buckets
	}
	return b
}

// Flat returns the skyline of an unobstructed horizon. It is built the same
// way as a surveyed one, from a single sample at (0, 0).
func Flat() Skyline {
	s, _ := Build([]Dataset{{ID: 1, Samples: []Sample{{Azimuth: 0, Elevation: 0}}}})
	return s
}

// Build merges the surveys into a skyline. Samples falling into the same
// bucket are averaged; buckets without a sample are linearly interpolated
// between the nearest observed bucket on either side, going around the circle.
func Build(datasets []Dataset) (Skyline, error) {
	var observed [Buckets][]float64
	for _, ds := range datasets {
		for _, smp := range ds.Samples {
			b := Bucket(smp.Azimuth)
			observed[b] = append(observed[b], smp.Elevation)
		}
	}

	var (
		elevations [Buckets]float64
		known      [Buckets]bool
		anyKnown   bool
	)
	for b, values := range observed {
		if len(values) == 0 {
			continue
		}
		elevations[b] = stat.Mean(values, nil)
		known[b] = true
		anyKnown = true
	}
	if !anyKnown {
		return Skyline{}, ErrNoObservations
	}

	var s Skyline
	for b := 0; b < Buckets; b++ {
		if known[b] {
			s[b] = elevations[b]
			continue
		}
		left := nearestKnown(known, b, -1)
		right := nearestKnown(known, b, 1)
		s[b] = interpolate(left, elevations[left], right, elevations[right], b)
	}

	return s, nil
}

// nearestKnown walks from target in direction step (-1 counter-clockwise,
// +1 clockwise) and returns the first observed bucket. At least one bucket
// must be known; with a single one it is found in both directions.
func nearestKnown(known [Buckets]bool, target, step int) int {
	for i := 1; i <= Buckets; i++ {
		b := (target + step*i + Buckets) % Buckets
		if known[b] {
			return b
		}
	}
	return target
}

// Distance is the clockwise angular distance from one bucket to another.
func Distance(from, to int) int {
	return ((to-from)%Buckets + Buckets) % Buckets
}

func interpolate(left int, leftElevation float64, right int, rightElevation float64, target int) float64 {
	span := Distance(left, right)
	if span == 0 {
		// a single observed bucket covers the whole circle
		return leftElevation
	}
	t := float64(Distance(left, target)) / float64(span)
	return leftElevation + t*(rightElevation-leftElevation)
}
