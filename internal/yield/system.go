package yield

import (
	"errors"

	"github.com/chrissnell/pvyield/pkg/geo"
	"github.com/chrissnell/pvyield/pkg/horizon"
)

// Module is one PV module ready for the power pipeline.
type Module struct {
	DCRating float64 // W
	Azimuth  float64 // degrees, 180 = south
	Tilt     float64 // degrees from horizontal
	Skyline  horizon.Skyline
	Shaded   bool // false when the survey had no obstacle samples
}

// System is a PV installation ready for the power pipeline.
type System struct {
	Location         geo.Location
	Modules          []Module
	InverterACRating float64 // W
}

// NewSystem validates req and builds the System it describes. Panels without
// obstacle samples get a flat skyline.
func NewSystem(req Request) (System, error) {
	if err := req.Validate(); err != nil {
		return System{}, err
	}

	modules := make([]Module, len(req.Panels))
	for i, p := range req.Panels {
		skyline, err := horizon.Build(p.Obstacles)
		shaded := true
		if errors.Is(err, horizon.ErrNoObservations) {
			skyline, shaded = horizon.Flat(), false
		} else if err != nil {
			return System{}, err
		}

		modules[i] = Module{
			DCRating: p.Watts,
			Azimuth:  p.Azimuth,
			Tilt:     p.Elevation,
			Skyline:  skyline,
			Shaded:   shaded,
		}
	}

	return System{
		Location:         req.Location,
		Modules:          modules,
		InverterACRating: req.Inverters[0].Watts,
	}, nil
}

// ShadedModules counts the modules whose skyline came from obstacle surveys.
func (s System) ShadedModules() int {
	n := 0
	for _, m := range s.Modules {
		if m.Shaded {
			n++
		}
	}
	return n
}

// WithoutShadow returns a copy of s whose modules all see a flat skyline.
// s is left untouched.
func (s System) WithoutShadow() System {
	modules := make([]Module, len(s.Modules))
	for i, m := range s.Modules {
		m.Skyline = horizon.Flat()
		m.Shaded = false
		modules[i] = m
	}
	s.Modules = modules
	return s
}

// GridCell is the weather grid cell the system's series are read from.
func (s System) GridCell() geo.Location {
	return geo.NearestGridCell(s.Location)
}
