package managers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/pvyield/internal/weather"
	"github.com/chrissnell/pvyield/pkg/config"
	"github.com/chrissnell/pvyield/pkg/geo"
)

var cell = geo.Location{Longitude: 8.5, Latitude: 49.25}

const archive = "0,header\n2,2017,6,21,12,0,24.5,120,780,850,2.1\n"

func TestNewWeatherManagerCSVWithMemoryCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, weather.FileName(cell, 2017)), []byte(archive), 0o600))

	m, err := NewWeatherManager(context.Background(), config.WeatherData{
		Backend: config.BackendCSV,
		CSVDir:  dir,
		Cache:   config.CacheData{Backend: config.CacheMemory, Entries: 2},
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer m.Close()

	assert.IsType(t, &weather.CachingProvider{}, m.Provider)

	samples, err := m.Provider.FetchSamples(context.Background(), cell, 2017)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	_, err = m.Provider.FetchSamples(context.Background(), cell, 2018)
	assert.ErrorIs(t, err, weather.ErrDataUnavailable)
}

func TestNewWeatherManagerSQLite(t *testing.T) {
	m, err := NewWeatherManager(context.Background(), config.WeatherData{
		Backend:    config.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "weather.db"),
		Cache:      config.CacheData{Backend: config.CacheNone},
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.IsType(t, &weather.SQLiteProvider{}, m.Provider)
	assert.NoError(t, m.Close())
}

func TestNewWeatherManagerRejectsUnknownBackends(t *testing.T) {
	_, err := NewWeatherManager(context.Background(), config.WeatherData{Backend: "influxdb"}, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = NewWeatherManager(context.Background(), config.WeatherData{
		Backend: config.BackendCSV,
		CSVDir:  t.TempDir(),
		Cache:   config.CacheData{Backend: "memcached"},
	}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

type fakeCloser struct {
	closed int
}

func (f *fakeCloser) Close() error {
	f.closed++
	return nil
}

func TestKeepClosesOnFailedInit(t *testing.T) {
	m := &WeatherManager{}
	c := &fakeCloser{}

	err := m.keep(c, func() error { return errors.New("create_hypertable failed") })
	assert.ErrorContains(t, err, "create_hypertable failed")
	assert.Equal(t, 1, c.closed)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, c.closed)
}

func TestKeepRegistersForClose(t *testing.T) {
	m := &WeatherManager{}
	c := &fakeCloser{}

	require.NoError(t, m.keep(c, func() error { return nil }))
	assert.Zero(t, c.closed)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, c.closed)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, c.closed)
}
