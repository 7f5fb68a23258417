// Package geo holds geographic coordinates and the mapping from an arbitrary
// coordinate onto the grid of cells the weather archive is keyed by.
package geo

import (
	"fmt"
	"math"
	"strconv"
)

// Location is a point in decimal degrees.
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Grid cell centers: longitudes sit on .5, latitudes on .25 and .75
const (
	cellLongitudeOffset   = 0.5
	cellLatitudeLowerHalf = 0.25
	cellLatitudeUpperHalf = 0.75
)

// NearestGridCell returns the center of the weather grid cell that contains loc.
// Cells are one degree of longitude by half a degree of latitude, aligned on
// the floor of each coordinate.
func NearestGridCell(loc Location) Location {
	lon := math.Floor(loc.Longitude) + cellLongitudeOffset

	latFloor := math.Floor(loc.Latitude)
	lat := latFloor + cellLatitudeLowerHalf
	if loc.Latitude-latFloor >= 0.5 {
		lat = latFloor + cellLatitudeUpperHalf
	}

	return Location{Longitude: lon, Latitude: lat}
}

// Valid reports whether the coordinate lies on the globe.
func (l Location) Valid() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Longitude)
	}
	return nil
}

// Key renders the location as "<lon> <lat>" using the shortest decimal form,
// e.g. "8.5 49.25". Weather files and cache entries are named with it.
func (l Location) Key() string {
	return strconv.FormatFloat(l.Longitude, 'f', -1, 64) + " " + strconv.FormatFloat(l.Latitude, 'f', -1, 64)
}

func (l Location) String() string {
	return fmt.Sprintf("(%v, %v)", l.Longitude, l.Latitude)
}
