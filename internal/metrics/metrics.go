// Package metrics exposes the engine's Prometheus surface: command latency,
// trade throughput and per-market resting order depth.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements engine.Metrics over a small set of Prometheus
// instruments, namespaced the way VictorVVedtion-perp-dex/metrics/prometheus.go
// namespaces its Collector, scaled down to the three signals the engine
// actually reports instead of that file's full exchange-wide surface.
type Collector struct {
	commandLatency *prometheus.HistogramVec
	tradesTotal    prometheus.Counter
	restingOrders  *prometheus.GaugeVec
}

// NewCollector builds and registers a fresh Collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// DefaultRegisterer across repeated engine instantiations.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "duality",
				Subsystem: "engine",
				Name:      "command_latency_ms",
				Help:      "Engine actor command processing latency in milliseconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50},
			},
			[]string{"action"},
		),
		tradesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "duality",
				Subsystem: "matching",
				Name:      "trades_total",
				Help:      "Total number of trades executed across all markets",
			},
		),
		restingOrders: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "duality",
				Subsystem: "book",
				Name:      "resting_orders",
				Help:      "Number of resting orders in a canonical market's book",
			},
			[]string{"market_id"},
		),
	}

	reg.MustRegister(c.commandLatency, c.tradesTotal, c.restingOrders)
	return c
}

// ObserveCommand records how long one engine command took to execute.
func (c *Collector) ObserveCommand(action string, d time.Duration) {
	c.commandLatency.WithLabelValues(action).Observe(float64(d.Microseconds()) / 1000.0)
}

// IncTrades adds n to the total trade counter.
func (c *Collector) IncTrades(n int) {
	c.tradesTotal.Add(float64(n))
}

// SetRestingOrders sets the current resting order count for marketID.
func (c *Collector) SetRestingOrders(marketID uint64, count int) {
	c.restingOrders.WithLabelValues(strconv.FormatUint(marketID, 10)).Set(float64(count))
}

// Handler serves the Prometheus exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
