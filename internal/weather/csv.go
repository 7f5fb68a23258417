package weather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/pvyield/pkg/geo"
)

// Column layout of an archive file.
const (
	colMarker = iota
	colYear
	colMonth
	colDay
	colHour
	colMinute
	colTemperature
	colDHI
	colDNI
	colGHI
	colWindSpeed
	numColumns
)

// FileName is the archive file holding a cell's series for one year,
// e.g. "8.5 49.25_2017.csv".
func FileName(cell geo.Location, year int) string {
	return fmt.Sprintf("%s_%d.csv", cell.Key(), year)
}

// ParseFileName recovers the grid cell and year from an archive file name.
func ParseFileName(name string) (geo.Location, int, error) {
	base, ok := strings.CutSuffix(name, ".csv")
	if !ok {
		return geo.Location{}, 0, fmt.Errorf("%q: not a .csv file", name)
	}
	coords, yearStr, ok := strings.Cut(base, "_")
	if !ok {
		return geo.Location{}, 0, fmt.Errorf("%q: missing _<year> suffix", name)
	}
	lonStr, latStr, ok := strings.Cut(coords, " ")
	if !ok {
		return geo.Location{}, 0, fmt.Errorf("%q: expected \"<lon> <lat>\"", name)
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geo.Location{}, 0, fmt.Errorf("%q: longitude: %w", name, err)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Location{}, 0, fmt.Errorf("%q: latitude: %w", name, err)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return geo.Location{}, 0, fmt.Errorf("%q: year: %w", name, err)
	}
	return geo.Location{Longitude: lon, Latitude: lat}, year, nil
}

// isMarkerRow reports header and separator rows, which carry "", "0" or "1"
// in the first column.
func isMarkerRow(marker string) bool {
	switch strings.TrimSpace(marker) {
	case "", "0", "1":
		return true
	}
	return false
}

// ParseCSV reads an archive file. Marker rows are skipped; any other row that
// does not parse fails the whole file.
func ParseCSV(r io.Reader, cell geo.Location) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var samples []Sample
	lineNum := 0
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		if isMarkerRow(record[colMarker]) {
			continue
		}

		s, err := parseRecord(record, cell)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func parseRecord(record []string, cell geo.Location) (Sample, error) {
	if len(record) < numColumns {
		return Sample{}, fmt.Errorf("expected %d fields, got %d", numColumns, len(record))
	}

	var dateParts [5]int
	for i := range dateParts {
		v, err := strconv.Atoi(strings.TrimSpace(record[colYear+i]))
		if err != nil {
			return Sample{}, fmt.Errorf("parsing date field %d %q: %w", colYear+i, record[colYear+i], err)
		}
		dateParts[i] = v
	}
	ts, err := wallClock(dateParts[0], dateParts[1], dateParts[2], dateParts[3], dateParts[4])
	if err != nil {
		return Sample{}, err
	}

	var values [numColumns - colTemperature]float64
	for i := range values {
		raw := strings.TrimSpace(record[colTemperature+i])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("parsing field %d %q: %w", colTemperature+i, raw, err)
		}
		values[i] = v
	}

	return Sample{
		Location:    cell,
		Timestamp:   ts,
		Temperature: values[colTemperature-colTemperature],
		DHI:         values[colDHI-colTemperature],
		DNI:         values[colDNI-colTemperature],
		GHI:         values[colGHI-colTemperature],
		WindSpeed:   values[colWindSpeed-colTemperature],
	}, nil
}

// wallClock builds a timestamp and rejects dates time.Date would normalize.
func wallClock(year, month, day, hour, minute int) (time.Time, error) {
	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if ts.Year() != year || int(ts.Month()) != month || ts.Day() != day || ts.Hour() != hour || ts.Minute() != minute {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d %02d:%02d", year, month, day, hour, minute)
	}
	return ts, nil
}

// CSVProvider serves samples from a directory of archive files.
type CSVProvider struct {
	fsys fs.FS
}

// NewCSVProvider reads archive files from fsys.
func NewCSVProvider(fsys fs.FS) *CSVProvider {
	return &CSVProvider{fsys: fsys}
}

// NewCSVDirProvider reads archive files from a directory on disk.
func NewCSVDirProvider(dir string) *CSVProvider {
	return NewCSVProvider(os.DirFS(dir))
}

// FetchSamples implements Provider.
func (p *CSVProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := FileName(cell, year)
	f, err := p.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no file %q", ErrDataUnavailable, name)
		}
		return nil, fmt.Errorf("opening %q: %w", name, err)
	}
	defer f.Close()

	samples, err := ParseCSV(f, cell)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", name, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %q holds no samples", ErrDataUnavailable, name)
	}
	return samples, nil
}
