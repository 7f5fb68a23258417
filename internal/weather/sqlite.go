package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/pvyield/pkg/geo"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS weather_samples (
	grid_lon    REAL    NOT NULL,
	grid_lat    REAL    NOT NULL,
	year        INTEGER NOT NULL,
	ts          INTEGER NOT NULL,
	temperature REAL    NOT NULL,
	dhi         REAL    NOT NULL,
	dni         REAL    NOT NULL,
	ghi         REAL    NOT NULL,
	wind_speed  REAL    NOT NULL,
	PRIMARY KEY (grid_lon, grid_lat, ts)
);
CREATE INDEX IF NOT EXISTS weather_samples_cell_year ON weather_samples (grid_lon, grid_lat, year);
`

// sqliteInsertBatch keeps each INSERT well under SQLite's bound-parameter limit.
const sqliteInsertBatch = 500

type sqliteRow struct {
	GridLon     float64 `db:"grid_lon"`
	GridLat     float64 `db:"grid_lat"`
	Year        int     `db:"year"`
	Unix        int64   `db:"ts"`
	Temperature float64 `db:"temperature"`
	DHI         float64 `db:"dhi"`
	DNI         float64 `db:"dni"`
	GHI         float64 `db:"ghi"`
	WindSpeed   float64 `db:"wind_speed"`
}

func (r sqliteRow) sample() Sample {
	return Sample{
		Location:    geo.Location{Longitude: r.GridLon, Latitude: r.GridLat},
		Timestamp:   time.Unix(r.Unix, 0).UTC(),
		Temperature: r.Temperature,
		DHI:         r.DHI,
		DNI:         r.DNI,
		GHI:         r.GHI,
		WindSpeed:   r.WindSpeed,
	}
}

func newSQLiteRow(year int, s Sample) sqliteRow {
	return sqliteRow{
		GridLon:     s.Location.Longitude,
		GridLat:     s.Location.Latitude,
		Year:        year,
		Unix:        s.Timestamp.Unix(),
		Temperature: s.Temperature,
		DHI:         s.DHI,
		DNI:         s.DNI,
		GHI:         s.GHI,
		WindSpeed:   s.WindSpeed,
	}
}

// SQLiteProvider serves samples from an embedded SQLite database.
type SQLiteProvider struct {
	db *sqlx.DB
}

// OpenSQLite opens (and if needed creates) the weather database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteProvider, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create weather schema: %w", err)
	}
	return &SQLiteProvider{db: db}, nil
}

// FetchSamples implements Provider.
func (p *SQLiteProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	query := `
		SELECT grid_lon, grid_lat, year, ts, temperature, dhi, dni, ghi, wind_speed
		FROM weather_samples
		WHERE grid_lon = ? AND grid_lat = ? AND year = ?
		ORDER BY ts`

	var rows []sqliteRow
	if err := p.db.SelectContext(ctx, &rows, query, cell.Longitude, cell.Latitude, year); err != nil {
		return nil, fmt.Errorf("failed to query samples for %s/%d: %w", cell, year, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrDataUnavailable, cell, year)
	}

	samples := make([]Sample, len(rows))
	for i, r := range rows {
		samples[i] = r.sample()
	}
	return samples, nil
}

// StoreSamples writes samples as part of the archive year in one transaction,
// replacing existing rows with the same cell and timestamp. year is the year
// the series is served under, which may differ from a row's own timestamp at
// the turn of the year.
func (p *SQLiteProvider) StoreSamples(ctx context.Context, year int, samples []Sample) error {
	query := `
		INSERT OR REPLACE INTO weather_samples
			(grid_lon, grid_lat, year, ts, temperature, dhi, dni, ghi, wind_speed)
		VALUES
			(:grid_lon, :grid_lat, :year, :ts, :temperature, :dhi, :dni, :ghi, :wind_speed)`

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(samples); start += sqliteInsertBatch {
		end := min(start+sqliteInsertBatch, len(samples))
		batch := make([]sqliteRow, 0, end-start)
		for _, s := range samples[start:end] {
			batch = append(batch, newSQLiteRow(year, s))
		}
		if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
			return fmt.Errorf("failed to insert samples: %w", err)
		}
	}

	return tx.Commit()
}

// Close releases the database handle.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}
