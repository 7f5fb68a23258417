// Package managers assembles the configured backends into running components.
package managers

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/pvyield/internal/weather"
	"github.com/chrissnell/pvyield/pkg/config"
)

// WeatherManager holds the active weather backend, wrapped in the
// configured cache.
type WeatherManager struct {
	Provider weather.Provider
	closers  []io.Closer
}

// NewWeatherManager opens the weather backend and cache named in c.
func NewWeatherManager(ctx context.Context, c config.WeatherData, logger *zap.SugaredLogger) (*WeatherManager, error) {
	m := &WeatherManager{}

	backend, err := m.openBackend(ctx, c, logger)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("could not open %s weather backend: %w", c.Backend, err)
	}
	m.Provider = backend

	store, err := m.openCache(ctx, c.Cache)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("could not open %s weather cache: %w", c.Cache.Backend, err)
	}
	if store != nil {
		m.Provider = weather.NewCachingProvider(backend, store, logger)
	}

	logger.Infof("weather backend %s ready (cache: %s)", c.Backend, c.Cache.Backend)
	return m, nil
}

func (m *WeatherManager) openBackend(ctx context.Context, c config.WeatherData, logger *zap.SugaredLogger) (weather.Provider, error) {
	switch c.Backend {
	case config.BackendCSV, "":
		return weather.NewCSVDirProvider(c.CSVDir), nil
	case config.BackendSQLite:
		p, err := weather.OpenSQLite(ctx, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return p, m.keep(p, nil)
	case config.BackendTimescaleDB:
		p, err := weather.ConnectTimescaleDB(c.ConnectionString, logger)
		if err != nil {
			return nil, err
		}
		if err := m.keep(p, func() error { return p.Migrate(ctx) }); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported weather backend %q", c.Backend)
	}
}

func (m *WeatherManager) openCache(ctx context.Context, c config.CacheData) (weather.Store, error) {
	switch c.Backend {
	case config.CacheNone, "":
		return nil, nil
	case config.CacheMemory:
		return weather.NewMemoryStore(c.Entries), nil
	case config.CacheRedis:
		s, err := weather.NewRedisStore(ctx, c.RedisAddr, c.TTL)
		if err != nil {
			return nil, err
		}
		return s, m.keep(s, nil)
	default:
		return nil, fmt.Errorf("unsupported weather cache %q", c.Backend)
	}
}

// keep runs init and registers c for Close. When init fails c is closed
// straight away.
func (m *WeatherManager) keep(c io.Closer, init func() error) error {
	if init != nil {
		if err := init(); err != nil {
			return multierr.Append(err, c.Close())
		}
	}
	m.closers = append(m.closers, c)
	return nil
}

// Close releases every backend connection.
func (m *WeatherManager) Close() error {
	var errs error
	for _, c := range m.closers {
		errs = multierr.Append(errs, c.Close())
	}
	m.closers = nil
	return errs
}
