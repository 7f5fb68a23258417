package yield

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/chrissnell/pvyield/pkg/geo"
	"github.com/chrissnell/pvyield/pkg/horizon"
)

// ErrInvalidRequest wraps every validation failure of a Request.
var ErrInvalidRequest = errors.New("invalid yield request")

// Request is the JSON body of a yield calculation.
type Request struct {
	Location  geo.Location `json:"userGPSCoords"`
	Panels    []Panel      `json:"userPanels"`
	Inverters []Inverter   `json:"userInverters"`
}

// Panel is one module as surveyed by the user. Elevation is the module tilt.
type Panel struct {
	ID          string            `json:"panelID"`
	Description string            `json:"panelDescription"`
	Watts       float64           `json:"panelWatts"`
	Azimuth     float64           `json:"panelAzimuth"`
	Elevation   float64           `json:"panelElevation"`
	Obstacles   []horizon.Dataset `json:"panelObstacleDatasets"`
}

// Inverter is one inverter of the installation. Only the first is used.
type Inverter struct {
	ID          string  `json:"inverterID"`
	Watts       float64 `json:"inverterWatts"`
	Name        string  `json:"inverterName"`
	Description string  `json:"inverterDescription"`
}

// Response is the JSON body returned for a calculation.
type Response struct {
	CalculatedOutput         int `json:"calculatedOutput"`
	CalculatedOutputNoShadow int `json:"calculatedOutputNoShadow"`
}

// Validate reports every problem with the request at once. The returned
// error wraps ErrInvalidRequest.
func (r Request) Validate() error {
	var errs error

	if err := r.Location.Valid(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("userGPSCoords: %w", err))
	}

	if len(r.Panels) == 0 {
		errs = multierr.Append(errs, errors.New("userPanels: at least one panel is required"))
	}
	for i, p := range r.Panels {
		errs = multierr.Append(errs, p.validate(i))
	}

	if len(r.Inverters) == 0 {
		errs = multierr.Append(errs, errors.New("userInverters: at least one inverter is required"))
	} else if w := r.Inverters[0].Watts; !finite(w) || w <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("userInverters[0].inverterWatts: must be positive, got %v", w))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errs)
	}
	return nil
}

func (p Panel) validate(i int) error {
	var errs error
	field := func(name string) string { return fmt.Sprintf("userPanels[%d].%s", i, name) }

	if !finite(p.Watts) || p.Watts < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: must be non-negative, got %v", field("panelWatts"), p.Watts))
	}
	if !finite(p.Azimuth) {
		errs = multierr.Append(errs, fmt.Errorf("%s: must be finite", field("panelAzimuth")))
	}
	if !finite(p.Elevation) || p.Elevation < 0 || p.Elevation > 90 {
		errs = multierr.Append(errs, fmt.Errorf("%s: must be within [0, 90], got %v", field("panelElevation"), p.Elevation))
	}

	for j, ds := range p.Obstacles {
		for k, pt := range ds.Samples {
			if !finite(pt.Azimuth) {
				errs = multierr.Append(errs, fmt.Errorf("%s[%d].dataPoints[%d].azimuth: must be finite",
					field("panelObstacleDatasets"), j, k))
			}
			if !finite(pt.Elevation) {
				errs = multierr.Append(errs, fmt.Errorf("%s[%d].dataPoints[%d].elevation: must be finite",
					field("panelObstacleDatasets"), j, k))
			}
		}
	}
	return errs
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
