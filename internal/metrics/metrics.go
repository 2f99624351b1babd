// Package metrics provides the small set of in-process counters, gauges,
// and a latency summary this server needs: accessor/cache gauges mirror
// internal/state's SharedState budget, and the request summary tracks
// dispatch latency. There is no scrape/export transport wired (the spec's
// Non-goals exclude adding a metrics HTTP surface) — values are read
// in-process, e.g. for periodic log lines.
package metrics

import (
	"math"
	"sync/atomic"

	"github.com/beorn7/perks/quantile"
)

// DefaultPercentiles mirrors the OTEL-aligned set the teacher's metrics
// package tracks by default.
var DefaultPercentiles = []float64{0.5, 0.9, 0.95, 0.99}

// Counter is a monotonically increasing value.
type Counter struct {
	v atomic.Uint64
}

func (c *Counter) Inc()           { c.v.Add(1) }
func (c *Counter) Add(n uint64)   { c.v.Add(n) }
func (c *Counter) Value() uint64  { return c.v.Load() }

// Gauge is a value that can go up or down.
type Gauge struct {
	v atomic.Int64
}

func (g *Gauge) Set(n int64)     { g.v.Store(n) }
func (g *Gauge) Inc()            { g.v.Add(1) }
func (g *Gauge) Dec()            { g.v.Add(-1) }
func (g *Gauge) Value() int64    { return g.v.Load() }

// Summary tracks a distribution of observed values (e.g. request
// latencies in milliseconds) using a targeted quantile stream, exactly
// as the teacher's summary metric does.
type Summary struct {
	objectives map[float64]float64
	stream     *quantile.Stream
	count      atomic.Uint64
	sumBits    atomic.Uint64
}

// NewSummary creates a summary tracking the given quantiles (defaults to
// DefaultPercentiles when none are given).
func NewSummary(quantiles ...float64) *Summary {
	if len(quantiles) == 0 {
		quantiles = DefaultPercentiles
	}

	objectives := make(map[float64]float64, len(quantiles))
	for _, q := range quantiles {
		objectives[q] = 0.01
	}

	return &Summary{
		objectives: objectives,
		stream:     quantile.NewTargeted(objectives),
	}
}

// Observe records one sample.
func (s *Summary) Observe(value float64) {
	s.count.Add(1)

	for {
		oldBits := s.sumBits.Load()
		newSum := math.Float64frombits(oldBits) + value
		if s.sumBits.CompareAndSwap(oldBits, math.Float64bits(newSum)) {
			break
		}
	}

	s.stream.Insert(value)
}

// Count returns the number of observations.
func (s *Summary) Count() uint64 { return s.count.Load() }

// Mean returns the running mean of observed values.
func (s *Summary) Mean() float64 {
	n := s.Count()
	if n == 0 {
		return 0
	}

	return math.Float64frombits(s.sumBits.Load()) / float64(n)
}

// Quantile returns the estimated value at quantile q (0..1).
func (s *Summary) Quantile(q float64) float64 {
	return s.stream.Query(q)
}
