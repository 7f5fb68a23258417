package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chrissnell/pvyield/internal/log"
	"github.com/chrissnell/pvyield/internal/weather"
)

// sampleStore is a weather backend that can be loaded with samples.
type sampleStore interface {
	weather.Provider
	StoreSamples(ctx context.Context, year int, samples []weather.Sample) error
	Close() error
}

type Config struct {
	Dir              string
	Backend          string
	SQLitePath       string
	ConnectionString string
	Debug            bool
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.Dir, "dir", "weatherData", "Directory of <lon> <lat>_<year>.csv archive files")
	flag.StringVar(&cfg.Backend, "backend", "sqlite", "Destination backend (sqlite, timescaledb)")
	flag.StringVar(&cfg.SQLitePath, "sqlite", "weather.db", "SQLite database path")
	flag.StringVar(&cfg.ConnectionString, "connection-string", "", "TimescaleDB connection string")
	flag.BoolVar(&cfg.Debug, "debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(cfg.Debug, ""); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Backend, err)
	}
	defer store.Close()

	files, err := filepath.Glob(filepath.Join(cfg.Dir, "*.csv"))
	if err != nil {
		log.Fatalf("Failed to list %s: %v", cfg.Dir, err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Fatalf("No archive files found in %s", cfg.Dir)
	}

	start := time.Now()
	var total int
	for i, path := range files {
		n, err := importFile(ctx, store, path)
		if err != nil {
			log.Fatalf("Import of %s failed: %v", path, err)
		}
		total += n
		log.Infof("[%d/%d] %s: %s samples", i+1, len(files), filepath.Base(path), humanize.Comma(int64(n)))
	}

	log.Infof("Imported %s samples from %d files in %s", humanize.Comma(int64(total)), len(files),
		time.Since(start).Round(time.Millisecond))
}

func openStore(ctx context.Context, cfg Config) (sampleStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return weather.OpenSQLite(ctx, cfg.SQLitePath)
	case "timescaledb":
		if cfg.ConnectionString == "" {
			return nil, fmt.Errorf("-connection-string is required for timescaledb")
		}
		p, err := weather.ConnectTimescaleDB(cfg.ConnectionString, log.GetSugaredLogger())
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

func importFile(ctx context.Context, store sampleStore, path string) (int, error) {
	cell, year, err := weather.ParseFileName(filepath.Base(path))
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	samples, err := weather.ParseCSV(f, cell)
	if err != nil {
		return 0, err
	}
	log.Debugf("%s: grid cell %s, year %d", path, cell.Key(), year)

	if err := store.StoreSamples(ctx, year, samples); err != nil {
		return 0, err
	}
	return len(samples), nil
}
