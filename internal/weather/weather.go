// Package weather supplies the historical 15-minute weather series the yield
// calculation runs on. Series are keyed by grid cell and year and can be
// served from CSV archive files, SQLite or TimescaleDB.
package weather

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/pvyield/pkg/geo"
)

// ErrDataUnavailable is returned when a backend holds no series for the
// requested grid cell and year.
var ErrDataUnavailable = errors.New("weather data unavailable")

// IntervalsPerHour is the sampling rate of the archive.
const IntervalsPerHour = 4

// Sample is one 15-minute weather record. Timestamp is the archive's local
// wall-clock time, stored with time.UTC as its location.
type Sample struct {
	Location    geo.Location `msgpack:"loc"`
	Timestamp   time.Time    `msgpack:"ts"`
	Temperature float64      `msgpack:"t"`   // °C
	DHI         float64      `msgpack:"dhi"` // W/m²
	DNI         float64      `msgpack:"dni"` // W/m²
	GHI         float64      `msgpack:"ghi"` // W/m²
	WindSpeed   float64      `msgpack:"ws"`  // m/s
}

// Daylight reports whether the sample can contribute to the yield.
func (s Sample) Daylight() bool {
	return s.GHI > 0
}

// Provider returns the chronologically ordered samples of one grid cell and year.
type Provider interface {
	FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, cell geo.Location, year int) ([]Sample, error)

// FetchSamples calls f.
func (f ProviderFunc) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	return f(ctx, cell, year)
}
