package yield

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/pvyield/pkg/geo"
	"github.com/chrissnell/pvyield/pkg/horizon"
)

const requestJSON = `{
  "userGPSCoords": {"longitude": 8.4037, "latitude": 49.0069},
  "userPanels": [
    {
      "panelID": "south-1",
      "panelDescription": "garage roof",
      "panelWatts": 400,
      "panelAzimuth": 175,
      "panelElevation": 30,
      "panelObstacleDatasets": [
        {"dataSetID": 1, "dataPoints": [{"azimuth": 120.4, "elevation": 12}, {"azimuth": 240, "elevation": 4}]},
        {"dataSetID": 2, "dataPoints": [{"azimuth": 120.9, "elevation": 14}]}
      ]
    },
    {
      "panelID": "west-1",
      "panelDescription": "",
      "panelWatts": 300,
      "panelAzimuth": 260,
      "panelElevation": 15,
      "panelObstacleDatasets": []
    }
  ],
  "userInverters": [
    {"inverterID": "inv-1", "inverterWatts": 600, "inverterName": "SB 600", "inverterDescription": ""},
    {"inverterID": "inv-2", "inverterWatts": 5000, "inverterName": "spare", "inverterDescription": ""}
  ]
}`

func TestNewSystemFromJSON(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(requestJSON), &req))

	sys, err := NewSystem(req)
	require.NoError(t, err)

	assert.Equal(t, geo.Location{Longitude: 8.4037, Latitude: 49.0069}, sys.Location)
	assert.Equal(t, geo.Location{Longitude: 8.5, Latitude: 49.25}, sys.GridCell())
	assert.Equal(t, 600.0, sys.InverterACRating)
	require.Len(t, sys.Modules, 2)

	south := sys.Modules[0]
	assert.Equal(t, 400.0, south.DCRating)
	assert.Equal(t, 175.0, south.Azimuth)
	assert.Equal(t, 30.0, south.Tilt)
	assert.True(t, south.Shaded)
	assert.Equal(t, 13.0, south.Skyline[120])
	assert.Equal(t, 4.0, south.Skyline[240])

	west := sys.Modules[1]
	assert.False(t, west.Shaded)
	assert.Equal(t, horizon.Flat(), west.Skyline)

	assert.Equal(t, 1, sys.ShadedModules())
	assert.Zero(t, sys.WithoutShadow().ShadedModules())
}

func TestWithoutShadowLeavesReceiverUntouched(t *testing.T) {
	sys := mustSystem(t, shadedRequest())
	flat := sys.WithoutShadow()

	assert.Equal(t, 90.0, sys.Modules[0].Skyline[0])
	assert.True(t, sys.Modules[0].Shaded)

	assert.Equal(t, horizon.Flat(), flat.Modules[0].Skyline)
	assert.False(t, flat.Modules[0].Shaded)
	assert.Equal(t, sys.Modules[0].DCRating, flat.Modules[0].DCRating)
	assert.Equal(t, sys.Location, flat.Location)
	assert.Equal(t, sys.InverterACRating, flat.InverterACRating)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	req := Request{
		Location: geo.Location{Longitude: 200, Latitude: 10},
		Panels: []Panel{
			{Watts: -5, Azimuth: 180, Elevation: 95},
			{Watts: 100, Azimuth: 180, Elevation: 20, Obstacles: []horizon.Dataset{
				{Samples: []horizon.Sample{{Azimuth: 10, Elevation: math.NaN()}}},
			}},
		},
		Inverters: []Inverter{{Watts: 0}},
	}

	err := req.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)

	msg := err.Error()
	for _, want := range []string{
		"userGPSCoords",
		"userPanels[0].panelWatts",
		"userPanels[0].panelElevation",
		"userPanels[1].panelObstacleDatasets[0].dataPoints[0].elevation",
		"userInverters[0].inverterWatts",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestNegativeHorizonIsAccepted(t *testing.T) {
	req := flatRequest()
	req.Panels[0].Obstacles = []horizon.Dataset{{Samples: []horizon.Sample{{Azimuth: 90, Elevation: -3}}}}

	sys, err := NewSystem(req)
	require.NoError(t, err)
	assert.Equal(t, -3.0, sys.Modules[0].Skyline[90])
	assert.True(t, sys.Modules[0].Shaded)
}

func TestValidateRequiresPanelsAndInverters(t *testing.T) {
	err := Request{Location: geo.Location{Longitude: 8, Latitude: 49}}.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "userPanels")
	assert.Contains(t, err.Error(), "userInverters")
}

func TestValidateAcceptsWrappedAzimuths(t *testing.T) {
	req := flatRequest()
	req.Panels[0].Azimuth = -30
	req.Panels[0].Obstacles = []horizon.Dataset{{Samples: []horizon.Sample{{Azimuth: -10, Elevation: 5}, {Azimuth: 370, Elevation: 7}}}}

	sys, err := NewSystem(req)
	require.NoError(t, err)
	assert.Equal(t, 5.0, sys.Modules[0].Skyline[350])
	assert.Equal(t, 7.0, sys.Modules[0].Skyline[10])
}

func TestResponseJSON(t *testing.T) {
	data, err := json.Marshal(Result{WithShadow: 812, WithoutShadow: 845}.Response())
	require.NoError(t, err)
	assert.JSONEq(t, `{"calculatedOutput": 812, "calculatedOutputNoShadow": 845}`, string(data))
}
