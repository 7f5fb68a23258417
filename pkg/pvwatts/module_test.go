package pvwatts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultThermalParams(t *testing.T) {
	p := DefaultThermalParams()
	assert.InDelta(t, -3.205, p.A, 1e-12)
	assert.InDelta(t, -0.05675, p.B, 1e-12)
	assert.InDelta(t, 1.75, p.DeltaT, 1e-12)
}

func TestModuleTemperatures(t *testing.T) {
	m := NewModuleModel()

	tests := []struct {
		name     string
		ambient  Ambient
		back     float64
		cell     float64
	}{
		{"night is air temperature", Ambient{GHI: 0, Temperature: 4, WindSpeed: 2}, 4, 4},
		{"bright and calm", Ambient{GHI: 700, Temperature: 25, WindSpeed: 1}, 51.8248939, 53.0498939},
		{"full sun with wind", Ambient{GHI: 1000, Temperature: 20, WindSpeed: 3}, 54.2095649, 55.9595649},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.back, m.BackSurfaceTemperature(tt.ambient), 1e-6)
			assert.InDelta(t, tt.cell, m.CellTemperature(tt.ambient), 1e-6)
		})
	}
}

func TestDCPower(t *testing.T) {
	m := NewModuleModel()

	assert.InDelta(t, 868.1654984, m.DCPower(1000, Ambient{GHI: 700, Temperature: 25, WindSpeed: 1}, 1000), 1e-6)
	assert.InDelta(t, 230.7123122, m.DCPower(900, Ambient{GHI: 1000, Temperature: 20, WindSpeed: 3}, 300), 1e-6)
	assert.Zero(t, m.DCPower(0, Ambient{GHI: 500, Temperature: 10}, 400))
}

func TestDCPowerAtReferenceConditions(t *testing.T) {
	// cell at 25 °C means the nameplate rating scales linearly with irradiance
	m := ModuleModel{Thermal: ThermalParams{}, TemperatureCoefficient: DefaultTemperatureCoefficient}
	a := Ambient{GHI: 0, Temperature: ReferenceCellTemperature}
	assert.InDelta(t, 250.0, m.DCPower(1000, a, 250), 1e-12)
	assert.InDelta(t, 125.0, m.DCPower(500, a, 250), 1e-12)
}

func TestDCPowerIsLinearInIrradiance(t *testing.T) {
	m := NewModuleModel()
	a := Ambient{GHI: 800, Temperature: 15, WindSpeed: 4}
	assert.InDelta(t, 2*m.DCPower(300, a, 350), m.DCPower(600, a, 350), 1e-9)
}
