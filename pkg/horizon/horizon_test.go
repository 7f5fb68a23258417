package horizon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func survey(samples ...Sample) []Dataset {
	return []Dataset{{ID: 1, Samples: samples}}
}

func TestBuildReproducesObservedBuckets(t *testing.T) {
	samples := []Sample{{10, 5}, {90, 20}, {180, 35.5}, {270, 12}, {359, 3}}
	s, err := Build(survey(samples...))
	require.NoError(t, err)

	for _, smp := range samples {
		assert.Equal(t, smp.Elevation, s[int(smp.Azimuth)], "bucket %v", smp.Azimuth)
	}
}

func TestBuildAveragesWithinBucket(t *testing.T) {
	datasets := []Dataset{
		{ID: 1, Samples: []Sample{{Azimuth: 45.2, Elevation: 10}, {Azimuth: 200, Elevation: 4}}},
		{ID: 2, Samples: []Sample{{Azimuth: 45.9, Elevation: 20}, {Azimuth: 45, Elevation: 30}}},
	}
	s, err := Build(datasets)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, s[45], 1e-12)
	assert.InDelta(t, 4.0, s[200], 1e-12)
}

func TestBuildInterpolatesGapsMonotonically(t *testing.T) {
	s, err := Build(survey(Sample{100, 10}, Sample{110, 30}))
	require.NoError(t, err)

	assert.InDelta(t, 20.0, s[105], 1e-12)
	assert.InDelta(t, 12.0, s[101], 1e-12)
	for b := 101; b < 110; b++ {
		assert.GreaterOrEqual(t, s[b], 10.0)
		assert.LessOrEqual(t, s[b], 30.0)
		assert.Greater(t, s[b], s[b-1], "bucket %d should rise toward 110", b)
	}
}

func TestBuildWrapsAroundNorth(t *testing.T) {
	s, err := Build(survey(Sample{350, 10}, Sample{10, 30}))
	require.NoError(t, err)

	// 350 -> 10 is a 20 deg span through north, not 340 deg the other way
	assert.InDelta(t, 20.0, s[0], 1e-12)
	assert.InDelta(t, 19.0, s[359], 1e-12)
	assert.InDelta(t, 21.0, s[1], 1e-12)

	// the long way round, 10 -> 350, falls from 30 to 10
	assert.InDelta(t, 20.0, s[180], 1e-12)
}

func TestBuildAdjacentAcrossNorth(t *testing.T) {
	s, err := Build(survey(Sample{359, 8}, Sample{0, 2}, Sample{180, 50}))
	require.NoError(t, err)

	assert.Equal(t, 8.0, s[359])
	assert.Equal(t, 2.0, s[0])
	assert.Equal(t, 1, Distance(359, 0))
	assert.Equal(t, 359, Distance(0, 359))
}

func TestBuildSingleSampleFillsCircle(t *testing.T) {
	s, err := Build(survey(Sample{Azimuth: 123, Elevation: 7.5}))
	require.NoError(t, err)
	for b := 0; b < Buckets; b++ {
		assert.Equal(t, 7.5, s[b], "bucket %d", b)
	}
}

func TestBuildNoSamples(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNoObservations)

	_, err = Build([]Dataset{{ID: 1}, {ID: 2, Samples: []Sample{}}})
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestBuildAllBucketsFinite(t *testing.T) {
	s, err := Build(survey(Sample{0, 0}, Sample{90, 45}, Sample{91, 10}))
	require.NoError(t, err)
	for b, e := range s {
		assert.False(t, math.IsNaN(e) || math.IsInf(e, 0), "bucket %d = %v", b, e)
	}
}

func TestFlat(t *testing.T) {
	flat := Flat()
	assert.Equal(t, Skyline{}, flat)
}

func TestBucket(t *testing.T) {
	tests := []struct {
		azimuth  float64
		expected int
	}{
		{0, 0},
		{179.99, 179},
		{359.7, 359},
		{360, 0},
		{365.5, 5},
		{-1, 359},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Bucket(tt.azimuth), "azimuth %v", tt.azimuth)
	}
}

func TestSkylineAt(t *testing.T) {
	s, err := Build(survey(Sample{200, 15}, Sample{201, 25}))
	require.NoError(t, err)
	assert.Equal(t, 15.0, s.At(200.95))
	assert.Equal(t, 25.0, s.At(201.0))
}
