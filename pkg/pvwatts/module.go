package pvwatts

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ThermalParams are the Sandia back-surface temperature model coefficients.
type ThermalParams struct {
	// A and B are the empirical exponent coefficients, B per m/s of wind.
	A float64
	B float64
	// DeltaT is the cell to back-surface temperature rise at 1000 W/m², °C.
	DeltaT float64
}

// DefaultThermalParams averages the coefficients of the four reference
// mounting configurations: glass/cell/glass open rack, glass/cell/glass close
// roof mount, glass/cell/polymer open rack and glass/cell/polymer insulated back.
func DefaultThermalParams() ThermalParams {
	return ThermalParams{
		A:      stat.Mean([]float64{-3.47, -2.98, -3.56, -2.81}, nil),
		B:      stat.Mean([]float64{-0.0594, -0.0471, -0.075, -0.0455}, nil),
		DeltaT: stat.Mean([]float64{3, 1, 3, 0}, nil),
	}
}

const (
	// DefaultTemperatureCoefficient of power for a standard module, per °C.
	DefaultTemperatureCoefficient = -0.0047
	// ReferenceCellTemperature of the module nameplate rating, °C.
	ReferenceCellTemperature = 25.0
	// ReferenceIrradiance of the module nameplate rating, W/m².
	ReferenceIrradiance = 1000.0
)

// ModuleModel turns POA irradiance into temperature-corrected DC power.
type ModuleModel struct {
	Thermal                ThermalParams
	TemperatureCoefficient float64
}

// NewModuleModel returns the model with the default coefficients.
func NewModuleModel() ModuleModel {
	return ModuleModel{
		Thermal:                DefaultThermalParams(),
		TemperatureCoefficient: DefaultTemperatureCoefficient,
	}
}

// Ambient is the weather the cell temperature depends on.
type Ambient struct {
	GHI         float64 // W/m²
	Temperature float64 // °C
	WindSpeed   float64 // m/s
}

// BackSurfaceTemperature of the module in °C.
func (m ModuleModel) BackSurfaceTemperature(a Ambient) float64 {
	return a.GHI*math.Exp(m.Thermal.A+m.Thermal.B*a.WindSpeed) + a.Temperature
}

// CellTemperature in °C.
func (m ModuleModel) CellTemperature(a Ambient) float64 {
	return m.BackSurfaceTemperature(a) + a.GHI/ReferenceIrradiance*m.Thermal.DeltaT
}

// DCPower of a module rated dcRating watts receiving poa W/m².
func (m ModuleModel) DCPower(poa float64, a Ambient, dcRating float64) float64 {
	derate := 1 + m.TemperatureCoefficient*(m.CellTemperature(a)-ReferenceCellTemperature)
	return poa / ReferenceIrradiance * dcRating * derate
}
