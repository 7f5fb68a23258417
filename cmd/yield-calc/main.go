package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/pvyield/internal/log"
	"github.com/chrissnell/pvyield/internal/weather"
	"github.com/chrissnell/pvyield/internal/yield"
	"github.com/chrissnell/pvyield/pkg/solar"
)

func main() {
	requestFile := flag.String("request", "", "JSON request file (required, - for stdin)")
	dir := flag.String("dir", "weatherData", "Directory of weather archive CSV files")
	years := flag.String("years", "", "Comma-separated archive years (default 2017-2019)")
	workers := flag.Int("workers", 0, "Parallel workers per pass")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug, ""); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *requestFile == "" {
		log.Fatal("A request file is required. Use -request flag")
	}

	req, err := readRequest(*requestFile)
	if err != nil {
		log.Fatalf("Failed to read request: %v", err)
	}

	cfg := yield.Config{UTCOffset: solar.DefaultUTCOffset, Workers: *workers}
	if *years != "" {
		if cfg.Years, err = parseYears(*years); err != nil {
			log.Fatalf("Invalid -years: %v", err)
		}
	}

	calc, err := yield.NewCalculator(weather.NewCSVDirProvider(*dir), cfg, log.GetSugaredLogger(), nil)
	if err != nil {
		log.Fatalf("Failed to create calculator: %v", err)
	}

	result, err := calc.CalculateRequest(context.Background(), req)
	if err != nil {
		log.Fatalf("Calculation failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Response()); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}

func readRequest(path string) (yield.Request, error) {
	var req yield.Request

	f := os.Stdin
	if path != "-" {
		var err error
		if f, err = os.Open(path); err != nil {
			return req, err
		}
		defer f.Close()
	}

	err := json.NewDecoder(f).Decode(&req)
	return req, err
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, field := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, nil
}
