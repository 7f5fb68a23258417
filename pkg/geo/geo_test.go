package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearestGridCell(t *testing.T) {
	tests := []struct {
		name     string
		in       Location
		expected Location
	}{
		{"lower latitude half", Location{Longitude: 8.4, Latitude: 49.1}, Location{Longitude: 8.5, Latitude: 49.25}},
		{"upper latitude half", Location{Longitude: 8.9, Latitude: 49.6}, Location{Longitude: 8.5, Latitude: 49.75}},
		{"exactly half goes up", Location{Longitude: 13.0, Latitude: 52.5}, Location{Longitude: 13.5, Latitude: 52.75}},
		{"integer coordinates", Location{Longitude: 7, Latitude: 50}, Location{Longitude: 7.5, Latitude: 50.25}},
		{"already a cell center", Location{Longitude: 8.5, Latitude: 49.25}, Location{Longitude: 8.5, Latitude: 49.25}},
		{"western hemisphere", Location{Longitude: -73.9, Latitude: 40.7}, Location{Longitude: -73.5, Latitude: 40.75}},
		{"southern hemisphere", Location{Longitude: 151.2, Latitude: -33.87}, Location{Longitude: 151.5, Latitude: -33.75}},
		{"southern lower half", Location{Longitude: 151.2, Latitude: -33.6}, Location{Longitude: 151.5, Latitude: -33.75}},
		{"southern upper half", Location{Longitude: 151.2, Latitude: -33.4}, Location{Longitude: 151.5, Latitude: -33.25}},
		{"just below both zero lines", Location{Longitude: -0.3, Latitude: -0.3}, Location{Longitude: -0.5, Latitude: -0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NearestGridCell(tt.in)
			assert.InDelta(t, tt.expected.Longitude, got.Longitude, 1e-12)
			assert.InDelta(t, tt.expected.Latitude, got.Latitude, 1e-12)
		})
	}
}

func TestNearestGridCellIsIdempotent(t *testing.T) {
	for _, loc := range []Location{{1.2, 3.4}, {10.99, 47.51}, {179.1, 89.9}, {-73.9, 40.7}, {-0.3, -0.3}} {
		cell := NearestGridCell(loc)
		assert.Equal(t, cell, NearestGridCell(cell))
	}
}

func TestNearestGridCellContainsLocation(t *testing.T) {
	for _, loc := range []Location{{-73.9, 40.7}, {151.2, -33.87}, {-0.3, -0.3}, {-179.99, -89.99}, {8.4, 49.1}} {
		cell := NearestGridCell(loc)
		assert.LessOrEqual(t, math.Abs(loc.Longitude-cell.Longitude), 0.5, "longitude of %v", loc)
		assert.LessOrEqual(t, math.Abs(loc.Latitude-cell.Latitude), 0.25, "latitude of %v", loc)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "8.5 49.25", Location{Longitude: 8.5, Latitude: 49.25}.Key())
	assert.Equal(t, "-3.5 40.75", Location{Longitude: -3.5, Latitude: 40.75}.Key())
}

func TestValid(t *testing.T) {
	assert.NoError(t, Location{Longitude: 8.5, Latitude: 49.25}.Valid())
	assert.Error(t, Location{Longitude: 8.5, Latitude: 91}.Valid())
	assert.Error(t, Location{Longitude: -181, Latitude: 0}.Valid())
}
