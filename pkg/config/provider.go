// Package config loads and validates the pvyield configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	Close() error
}

// Weather backends
const (
	BackendCSV         = "csv"
	BackendSQLite      = "sqlite"
	BackendTimescaleDB = "timescaledb"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultListenAddr     = "0.0.0.0"
	DefaultHTTPPort       = 8080
	DefaultCSVDir         = "weatherData"
	DefaultCacheEntries   = 64
	DefaultUTCOffsetHours = 1.0
	DefaultServiceName    = "pvyield"
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server      ServerData      `yaml:"server" json:"server"`
	Weather     WeatherData     `yaml:"weather" json:"weather"`
	Calculation CalculationData `yaml:"calculation" json:"calculation"`
	Logging     LoggingData     `yaml:"logging" json:"logging"`
	Tracing     TracingData     `yaml:"tracing" json:"tracing"`
}

// ServerData holds the HTTP (and gRPC health) listener settings
type ServerData struct {
	ListenAddr         string   `yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
	HTTPPort           int      `yaml:"http_port,omitempty" json:"http_port,omitempty"`
	TLSCertPath        string   `yaml:"tls_cert_path,omitempty" json:"tls_cert_path,omitempty"`
	TLSKeyPath         string   `yaml:"tls_key_path,omitempty" json:"tls_key_path,omitempty"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins,omitempty" json:"cors_allowed_origins,omitempty"`
	// GRPCHealth serves grpc.health.v1 on the HTTP port.
	GRPCHealth bool `yaml:"grpc_health,omitempty" json:"grpc_health,omitempty"`
}

// WeatherData selects the weather archive backend
type WeatherData struct {
	Backend          string    `yaml:"backend,omitempty" json:"backend,omitempty"`
	CSVDir           string    `yaml:"csv_dir,omitempty" json:"csv_dir,omitempty"`
	SQLitePath       string    `yaml:"sqlite_path,omitempty" json:"sqlite_path,omitempty"`
	ConnectionString string    `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`
	Cache            CacheData `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// CacheData configures the weather series cache
type CacheData struct {
	Backend   string        `yaml:"backend,omitempty" json:"backend,omitempty"`
	Entries   int           `yaml:"entries,omitempty" json:"entries,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// CalculationData tunes the yield pipeline
type CalculationData struct {
	Years          []int              `yaml:"years,omitempty" json:"years,omitempty"`
	UTCOffsetHours *float64           `yaml:"utc_offset_hours,omitempty" json:"utc_offset_hours,omitempty"`
	Workers        int                `yaml:"workers,omitempty" json:"workers,omitempty"`
	ChunkSize      int                `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	Losses         map[string]float64 `yaml:"losses,omitempty" json:"losses,omitempty"`
}

// UTCOffset is the offset of the archive's wall-clock timestamps.
func (c CalculationData) UTCOffset() time.Duration {
	hours := DefaultUTCOffsetHours
	if c.UTCOffsetHours != nil {
		hours = *c.UTCOffsetHours
	}
	return time.Duration(hours * float64(time.Hour))
}

// LoggingData holds log output settings
type LoggingData struct {
	Debug bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// TracingData holds OpenTelemetry settings
type TracingData struct {
	Enabled     bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Exporter    string  `yaml:"exporter,omitempty" json:"exporter,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	SampleRatio float64 `yaml:"sample_ratio,omitempty" json:"sample_ratio,omitempty"`
}

// ApplyDefaults fills in every unset field.
func (c *ConfigData) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = DefaultHTTPPort
	}

	if c.Weather.Backend == "" {
		c.Weather.Backend = BackendCSV
	}
	if c.Weather.Backend == BackendCSV && c.Weather.CSVDir == "" {
		c.Weather.CSVDir = DefaultCSVDir
	}
	if c.Weather.Cache.Backend == "" {
		c.Weather.Cache.Backend = CacheNone
	}
	if c.Weather.Cache.Backend == CacheMemory && c.Weather.Cache.Entries == 0 {
		c.Weather.Cache.Entries = DefaultCacheEntries
	}

	if len(c.Calculation.Years) == 0 {
		c.Calculation.Years = []int{2017, 2018, 2019}
	}
	if c.Calculation.Workers == 0 {
		c.Calculation.Workers = 1
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate reports every configuration problem at once.
func (c *ConfigData) Validate() error {
	var errs error

	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort))
	}
	if (c.Server.TLSCertPath == "") != (c.Server.TLSKeyPath == "") {
		errs = multierr.Append(errs, errors.New("server.tls_cert_path and server.tls_key_path must be set together"))
	}

	switch c.Weather.Backend {
	case BackendCSV:
		if c.Weather.CSVDir == "" {
			errs = multierr.Append(errs, errors.New("weather.csv_dir is required for the csv backend"))
		}
	case BackendSQLite:
		if c.Weather.SQLitePath == "" {
			errs = multierr.Append(errs, errors.New("weather.sqlite_path is required for the sqlite backend"))
		}
	case BackendTimescaleDB:
		if c.Weather.ConnectionString == "" {
			errs = multierr.Append(errs, errors.New("weather.connection_string is required for the timescaledb backend"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("weather.backend %q is not one of %s", c.Weather.Backend,
			strings.Join([]string{BackendCSV, BackendSQLite, BackendTimescaleDB}, ", ")))
	}

	switch c.Weather.Cache.Backend {
	case CacheNone:
	case CacheMemory:
		if c.Weather.Cache.Entries < 1 {
			errs = multierr.Append(errs, errors.New("weather.cache.entries must be positive"))
		}
	case CacheRedis:
		if c.Weather.Cache.RedisAddr == "" {
			errs = multierr.Append(errs, errors.New("weather.cache.redis_addr is required for the redis cache"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("weather.cache.backend %q is not one of %s", c.Weather.Cache.Backend,
			strings.Join([]string{CacheNone, CacheMemory, CacheRedis}, ", ")))
	}

	if len(c.Calculation.Years) == 0 {
		errs = multierr.Append(errs, errors.New("calculation.years must not be empty"))
	}
	seen := make(map[int]bool, len(c.Calculation.Years))
	for _, y := range c.Calculation.Years {
		if seen[y] {
			errs = multierr.Append(errs, fmt.Errorf("calculation.years lists %d twice", y))
		}
		seen[y] = true
	}
	if c.Calculation.Workers < 1 {
		errs = multierr.Append(errs, fmt.Errorf("calculation.workers must be positive, got %d", c.Calculation.Workers))
	}
	if c.Calculation.ChunkSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("calculation.chunk_size must not be negative, got %d", c.Calculation.ChunkSize))
	}
	if h := c.Calculation.UTCOffset().Hours(); h < -14 || h > 14 {
		errs = multierr.Append(errs, fmt.Errorf("calculation.utc_offset_hours %v out of range [-14, 14]", h))
	}
	for name, loss := range c.Calculation.Losses {
		if loss < 0 || loss >= 100 {
			errs = multierr.Append(errs, fmt.Errorf("calculation.losses.%s = %v outside [0, 100)", name, loss))
		}
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp", "otlpgrpc":
		default:
			errs = multierr.Append(errs, fmt.Errorf("tracing.exporter %q is not one of stdout, otlp", c.Tracing.Exporter))
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			errs = multierr.Append(errs, fmt.Errorf("tracing.sample_ratio %v outside [0, 1]", c.Tracing.SampleRatio))
		}
	}

	return errs
}
