// Package observability carries the Prometheus metrics and OpenTelemetry
// tracing setup shared by the server and the calculation pipeline.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the yield service metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	Calculations         *prometheus.CounterVec
	CalculationDurations prometheus.Histogram
	SamplesProcessed     prometheus.Counter
	WeatherFetches       *prometheus.CounterVec
	WeatherFetchDuration prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvyield_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route and status code.",
	}, []string{"route", "code"}), "pvyield_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pvyield_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"route"}), "pvyield_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	calculations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvyield_calculations_total",
		Help: "Total number of yield calculations, labeled by result (ok, invalid, unavailable, error).",
	}, []string{"result"}), "pvyield_calculations_total")
	if err != nil {
		return nil, err
	}

	calcDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvyield_calculation_duration_seconds",
		Help:    "Duration of a complete yield calculation in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}), "pvyield_calculation_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pvyield_weather_samples_processed_total",
		Help: "Total number of daylight weather samples run through the power pipeline.",
	}), "pvyield_weather_samples_processed_total")
	if err != nil {
		return nil, err
	}

	fetches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pvyield_weather_fetches_total",
		Help: "Total number of weather series fetches, labeled by result.",
	}, []string{"result"}), "pvyield_weather_fetches_total")
	if err != nil {
		return nil, err
	}

	fetchDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pvyield_weather_fetch_duration_seconds",
		Help:    "Duration of a single cell-year weather fetch in seconds.",
		Buckets: prometheus.DefBuckets,
	}), "pvyield_weather_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		HTTPRequests:         httpRequests,
		HTTPDurations:        httpDurations,
		Calculations:         calculations,
		CalculationDurations: calcDurations,
		SamplesProcessed:     samples,
		WeatherFetches:       fetches,
		WeatherFetchDuration: fetchDuration,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one served request.
func (c *Collector) ObserveHTTPRequest(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, fmt.Sprint(code)).Inc()
	c.HTTPDurations.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveCalculation records one finished yield calculation.
func (c *Collector) ObserveCalculation(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Calculations.WithLabelValues(result).Inc()
	c.CalculationDurations.Observe(d.Seconds())
}

// AddSamples counts samples run through the power pipeline.
func (c *Collector) AddSamples(n int) {
	if c == nil {
		return
	}
	c.SamplesProcessed.Add(float64(n))
}

// ObserveWeatherFetch records one cell-year fetch.
func (c *Collector) ObserveWeatherFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.WeatherFetches.WithLabelValues(result).Inc()
	c.WeatherFetchDuration.Observe(d.Seconds())
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, h, name)
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, c, name)
}
