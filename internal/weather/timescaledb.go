package weather

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/pvyield/internal/log"
	"github.com/chrissnell/pvyield/pkg/geo"
)

const timescaleInsertBatch = 1000

// sampleRecord is the TimescaleDB row of a Sample.
type sampleRecord struct {
	Time        time.Time `gorm:"column:time;primaryKey"`
	GridLon     float64   `gorm:"column:grid_lon;primaryKey"`
	GridLat     float64   `gorm:"column:grid_lat;primaryKey"`
	Year        int       `gorm:"column:year;index:idx_weather_cell_year"`
	Temperature float64   `gorm:"column:temperature"`
	DHI         float64   `gorm:"column:dhi"`
	DNI         float64   `gorm:"column:dni"`
	GHI         float64   `gorm:"column:ghi"`
	WindSpeed   float64   `gorm:"column:wind_speed"`
}

// TableName implements gorm's Tabler.
func (sampleRecord) TableName() string {
	return "weather_samples"
}

// TimescaleProvider serves samples from a TimescaleDB hypertable.
type TimescaleProvider struct {
	DB     *gorm.DB
	logger *zap.SugaredLogger
}

// ConnectTimescaleDB opens a connection to the database at connectionString.
func ConnectTimescaleDB(connectionString string, logger *zap.SugaredLogger) (*TimescaleProvider, error) {
	dbLogger := newGormLogger()

	logger.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		logger.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}
	logger.Info("TimescaleDB connection successful")

	return &TimescaleProvider{DB: db, logger: logger}, nil
}

func newGormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Migrate creates the samples table and converts it to a hypertable. On a
// plain PostgreSQL server the conversion fails and the table stays regular.
func (p *TimescaleProvider) Migrate(ctx context.Context) error {
	db := p.DB.WithContext(ctx)
	if err := db.AutoMigrate(&sampleRecord{}); err != nil {
		return fmt.Errorf("failed to migrate weather_samples: %w", err)
	}

	err := db.Exec("SELECT create_hypertable('weather_samples', 'time', if_not_exists => TRUE, migrate_data => TRUE)").Error
	if err != nil {
		p.logger.Warnf("weather_samples is not a hypertable (is the timescaledb extension installed?): %v", err)
	}
	return nil
}

// FetchSamples implements Provider.
func (p *TimescaleProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	var records []sampleRecord
	err := p.DB.WithContext(ctx).
		Where("grid_lon = ? AND grid_lat = ? AND year = ?", cell.Longitude, cell.Latitude, year).
		Order("time").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query samples for %s/%d: %w", cell, year, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrDataUnavailable, cell, year)
	}

	samples := make([]Sample, len(records))
	for i, r := range records {
		samples[i] = Sample{
			Location:    geo.Location{Longitude: r.GridLon, Latitude: r.GridLat},
			Timestamp:   r.Time.UTC(),
			Temperature: r.Temperature,
			DHI:         r.DHI,
			DNI:         r.DNI,
			GHI:         r.GHI,
			WindSpeed:   r.WindSpeed,
		}
	}
	return samples, nil
}

// StoreSamples upserts samples in batches as part of the archive year.
func (p *TimescaleProvider) StoreSamples(ctx context.Context, year int, samples []Sample) error {
	records := make([]sampleRecord, len(samples))
	for i, s := range samples {
		records[i] = sampleRecord{
			Time:        s.Timestamp,
			GridLon:     s.Location.Longitude,
			GridLat:     s.Location.Latitude,
			Year:        year,
			Temperature: s.Temperature,
			DHI:         s.DHI,
			DNI:         s.DNI,
			GHI:         s.GHI,
			WindSpeed:   s.WindSpeed,
		}
	}

	err := p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, timescaleInsertBatch).Error
	if err != nil {
		return fmt.Errorf("failed to insert samples: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *TimescaleProvider) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
