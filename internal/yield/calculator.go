// Package yield runs the PV power pipeline over historical weather and
// aggregates the energy into an annual yield, once with the surveyed
// horizons and once without.
package yield

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/chrissnell/pvyield/internal/weather"
	"github.com/chrissnell/pvyield/pkg/geo"
	"github.com/chrissnell/pvyield/pkg/irradiance"
	"github.com/chrissnell/pvyield/pkg/pvwatts"
	"github.com/chrissnell/pvyield/pkg/solar"
)

const (
	// DefaultChunkSize is the number of samples one worker sums at a time.
	DefaultChunkSize = 2048

	kWhPerWh = 0.001
)

// Result labels reported to Metrics.
const (
	ResultOK          = "ok"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// DefaultYears are the archive years averaged into the annual yield.
func DefaultYears() []int {
	return []int{2017, 2018, 2019}
}

// Metrics receives calculation statistics.
type Metrics interface {
	ObserveCalculation(result string, d time.Duration)
	AddSamples(n int)
	ObserveWeatherFetch(d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCalculation(string, time.Duration) {}
func (noopMetrics) AddSamples(int)                           {}
func (noopMetrics) ObserveWeatherFetch(time.Duration, error) {}

// Config tunes a Calculator. Empty Years, and Workers or ChunkSize below one,
// select the defaults. UTCOffset is taken as is.
type Config struct {
	Years     []int
	UTCOffset time.Duration
	Workers   int
	ChunkSize int
	// Losses overrides individual default system losses, in percent by name.
	Losses map[string]float64
}

// Result is the annual yield of a system in whole kWh, truncated.
type Result struct {
	WithShadow    int
	WithoutShadow int
	GridCell      geo.Location
	// Samples is the number of daylight samples each pass ran over.
	Samples int
}

// Response converts r to its JSON form.
func (r Result) Response() Response {
	return Response{
		CalculatedOutput:         r.WithShadow,
		CalculatedOutputNoShadow: r.WithoutShadow,
	}
}

// Calculator runs yield calculations. It is safe for concurrent use.
type Calculator struct {
	provider weather.Provider
	sun      solar.Calculator
	poa      irradiance.Decomposer
	module   pvwatts.ModuleModel
	losses   pvwatts.SystemLosses

	years     []int
	workers   int
	chunkSize int

	logger  *zap.SugaredLogger
	metrics Metrics
	tracer  trace.Tracer
}

// NewCalculator builds a Calculator reading weather from provider. metrics
// may be nil.
func NewCalculator(provider weather.Provider, cfg Config, logger *zap.SugaredLogger, metrics Metrics) (*Calculator, error) {
	lossTable := pvwatts.DefaultLosses()
	for name, loss := range cfg.Losses {
		lossTable[name] = loss
	}
	losses, err := pvwatts.NewSystemLosses(lossTable)
	if err != nil {
		return nil, fmt.Errorf("system losses: %w", err)
	}

	years := cfg.Years
	if len(years) == 0 {
		years = DefaultYears()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Calculator{
		provider:  provider,
		sun:       solar.NewCalculator(cfg.UTCOffset),
		poa:       irradiance.NewDecomposer(),
		module:    pvwatts.NewModuleModel(),
		losses:    losses,
		years:     append([]int(nil), years...),
		workers:   workers,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("github.com/chrissnell/pvyield/internal/yield"),
	}, nil
}

// Years returns the archive years the calculator averages over.
func (c *Calculator) Years() []int {
	return append([]int(nil), c.years...)
}

// Losses returns the system losses applied to the DC power.
func (c *Calculator) Losses() pvwatts.SystemLosses {
	return c.losses
}

// CalculateRequest validates req, builds its System and calculates it.
func (c *Calculator) CalculateRequest(ctx context.Context, req Request) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "yield.CalculateRequest")
	defer span.End()

	c.enter(ctx, StageBuildSystem)
	sys, err := NewSystem(req)
	if err != nil {
		c.metrics.ObserveCalculation(ResultInvalid, 0)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	return c.Calculate(ctx, sys)
}

// Calculate returns the annual yield of sys with and without its skylines.
// Missing weather for any configured year fails the calculation.
func (c *Calculator) Calculate(ctx context.Context, sys System) (Result, error) {
	start := time.Now()
	cell := sys.GridCell()

	ctx, span := c.tracer.Start(ctx, "yield.Calculate", trace.WithAttributes(
		attribute.String("grid_cell", cell.Key()),
		attribute.Int("modules", len(sys.Modules)),
		attribute.Int("shaded_modules", sys.ShadedModules()),
	))
	defer span.End()

	res, err := c.calculate(ctx, sys, cell)
	c.metrics.ObserveCalculation(resultLabel(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	c.enter(ctx, StageDone)
	c.logger.Infow("yield calculated",
		"grid_cell", cell.Key(),
		"modules", len(sys.Modules),
		"shaded_modules", sys.ShadedModules(),
		"samples", humanize.Comma(int64(res.Samples)),
		"with_shadow_kwh", res.WithShadow,
		"without_shadow_kwh", res.WithoutShadow,
		"duration", time.Since(start),
	)
	return res, nil
}

func (c *Calculator) calculate(ctx context.Context, sys System, cell geo.Location) (Result, error) {
	samples, err := c.fetchDaylight(ctx, cell)
	if err != nil {
		return Result{}, err
	}
	c.metrics.AddSamples(2 * len(samples))

	unshadowed := sys.WithoutShadow()

	var shadowedWh, unshadowedWh float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.enter(gctx, StageComputeShadowed)
		var err error
		shadowedWh, err = c.energy(gctx, sys, samples)
		return err
	})
	g.Go(func() error {
		c.enter(gctx, StageComputeUnshadowed)
		var err error
		unshadowedWh, err = c.energy(gctx, unshadowed, samples)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{
		WithShadow:    c.annualKWh(shadowedWh),
		WithoutShadow: c.annualKWh(unshadowedWh),
		GridCell:      cell,
		Samples:       len(samples),
	}, nil
}

// fetchDaylight loads every configured year for cell and keeps the samples
// with GHI > 0. The result is shared read-only by both passes.
func (c *Calculator) fetchDaylight(ctx context.Context, cell geo.Location) ([]weather.Sample, error) {
	ctx, span := c.tracer.Start(ctx, "weather.FetchSamples")
	defer span.End()

	series := make([][]weather.Sample, len(c.years))
	g, gctx := errgroup.WithContext(ctx)
	for i, year := range c.years {
		g.Go(func() error {
			start := time.Now()
			samples, err := c.provider.FetchSamples(gctx, cell, year)
			c.metrics.ObserveWeatherFetch(time.Since(start), err)
			if err != nil {
				return fmt.Errorf("weather for %s in %d: %w", cell.Key(), year, err)
			}
			series[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	total := 0
	for _, s := range series {
		total += len(s)
	}
	daylight := make([]weather.Sample, 0, total/2)
	for _, s := range series {
		for _, smp := range s {
			if smp.Daylight() {
				daylight = append(daylight, smp)
			}
		}
	}

	span.SetAttributes(attribute.Int("samples", total), attribute.Int("daylight_samples", len(daylight)))
	c.logger.Debugf("loaded %s weather samples (%s daylight) for %s",
		humanize.Comma(int64(total)), humanize.Comma(int64(len(daylight))), cell.Key())
	return daylight, nil
}

// energy sums the interval energy of sys over samples in Wh. Samples are cut
// into fixed chunks whose partial sums are added in chunk order, so the
// result does not depend on the number of workers.
func (c *Calculator) energy(ctx context.Context, sys System, samples []weather.Sample) (float64, error) {
	chunks := (len(samples) + c.chunkSize - 1) / c.chunkSize
	partials := make([]float64, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := 0; i < chunks; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := i * c.chunkSize
			hi := min(lo+c.chunkSize, len(samples))

			var sum float64
			for _, s := range samples[lo:hi] {
				sum += c.IntervalEnergy(sys, s)
			}
			partials[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return floats.Sum(partials), nil
}

// IntervalEnergy is the AC energy sys delivers during the 15-minute interval
// of s, in Wh. Samples with GHI ≤ 0 deliver nothing.
func (c *Calculator) IntervalEnergy(sys System, s weather.Sample) float64 {
	if !s.Daylight() {
		return 0
	}
	return c.ACPower(sys, s) / weather.IntervalsPerHour
}

// ACPower is the inverter output of sys under the conditions of s, in W.
func (c *Calculator) ACPower(sys System, s weather.Sample) float64 {
	dc := c.losses.Apply(c.DCPower(sys, s))
	return pvwatts.NewInverter(sys.InverterACRating).ACPower(dc)
}

// DCPower is the summed module output of sys before system losses, in W.
func (c *Calculator) DCPower(sys System, s weather.Sample) float64 {
	sun := c.sun.Position(sys.Location, s.Timestamp)
	cond := irradiance.Conditions{
		DNI:       s.DNI,
		DHI:       s.DHI,
		GHI:       s.GHI,
		DayOfYear: s.Timestamp.YearDay(),
	}
	ambient := pvwatts.Ambient{
		GHI:         s.GHI,
		Temperature: s.Temperature,
		WindSpeed:   s.WindSpeed,
	}

	var dc float64
	for i := range sys.Modules {
		m := &sys.Modules[i]
		poa := c.poa.PlaneOfArray(cond, irradiance.Surface{
			Azimuth: m.Azimuth,
			Tilt:    m.Tilt,
			Skyline: &m.Skyline,
		}, sun)
		dc += c.module.DCPower(poa, ambient, m.DCRating)
	}
	return dc
}

func (c *Calculator) annualKWh(totalWh float64) int {
	return int(totalWh * kWhPerWh / float64(len(c.years)))
}

func (c *Calculator) enter(ctx context.Context, stage Stage) {
	trace.SpanFromContext(ctx).AddEvent(stage.String())
	c.logger.Debugw("yield stage", "stage", stage.String())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrInvalidRequest):
		return ResultInvalid
	case errors.Is(err, weather.ErrDataUnavailable):
		return ResultUnavailable
	default:
		return ResultError
	}
}
