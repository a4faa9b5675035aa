package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector exposes simulation-loop and allocator Prometheus metrics. It
// satisfies the metrics recorder interfaces of the clock and the allocator.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TickDuration       prometheus.Histogram
	RunActive          prometheus.Gauge
	AllocationOutcomes *prometheus.CounterVec
	ContentionsTotal   prometheus.Counter
	AllocationsHeld    prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Duration of one simulation tick, including mission advancement and checkpointing.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	runActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_run_active",
		Help: "1 while a simulation run is loaded, 0 otherwise.",
	})
	runActive, err = registerGauge(reg, runActive, "sim_run_active")
	if err != nil {
		return nil, err
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_outcomes_total",
		Help: "Cumulative allocation outcomes produced by allocator runs, labeled by outcome.",
	}, []string{"outcome"})
	outcomes, err = registerCounterVec(reg, outcomes, "allocation_outcomes_total")
	if err != nil {
		return nil, err
	}

	contentions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_contentions_total",
		Help: "Cumulative number of contention groups resolved by allocator runs.",
	})
	contentions, err = registerCounter(reg, contentions, "allocation_contentions_total")
	if err != nil {
		return nil, err
	}

	held := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_space_allocations",
		Help: "Number of space allocations held after the most recent allocator run.",
	})
	held, err = registerGauge(reg, held, "scenario_space_allocations")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:           gatherer,
		TickDuration:       tickHistogram,
		RunActive:          runActive,
		AllocationOutcomes: outcomes,
		ContentionsTotal:   contentions,
		AllocationsHeld:    held,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records the duration of one simulation tick.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// SetRunActive flags whether a simulation run is currently loaded.
func (c *SimCollector) SetRunActive(active bool) {
	if c == nil || c.RunActive == nil {
		return
	}
	if active {
		c.RunActive.Set(1)
	} else {
		c.RunActive.Set(0)
	}
}

// RecordAllocationRun folds one allocator run's outcome counts into the
// cumulative counters and refreshes the held-allocations gauge. Every run
// rebuilds its day's allocations, so the gauge tracks the latest run.
func (c *SimCollector) RecordAllocationRun(fulfilled, degraded, denied, contentions int) {
	if c == nil {
		return
	}
	if c.AllocationOutcomes != nil {
		c.AllocationOutcomes.WithLabelValues("fulfilled").Add(float64(fulfilled))
		c.AllocationOutcomes.WithLabelValues("degraded").Add(float64(degraded))
		c.AllocationOutcomes.WithLabelValues("denied").Add(float64(denied))
	}
	if c.ContentionsTotal != nil {
		c.ContentionsTotal.Add(float64(contentions))
	}
	if c.AllocationsHeld != nil {
		c.AllocationsHeld.Set(float64(fulfilled + degraded + denied))
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
