// Package metrics holds the per-run Prometheus collectors. A one-shot CLI has
// no scrape endpoint, so the registry is written out in text exposition
// format (node-exporter textfile style) when a metrics file is configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	OrdersFused   prometheus.Counter
	SideMatches   *prometheus.CounterVec
	OrdersLate    prometheus.Gauge
	OrdersFailed  prometheus.Gauge
	LLMRequests   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		OrdersFused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootcause_orders_fused_total",
			Help: "Fused order records produced.",
		}),
		SideMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rootcause_side_table_matches_total",
			Help: "Orders that matched at least one row in a side table.",
		}, []string{"table"}),
		OrdersLate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rootcause_orders_late",
			Help: "Orders classified as late in the last run.",
		}),
		OrdersFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rootcause_orders_failed",
			Help: "Orders classified as failed in the last run.",
		}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rootcause_llm_requests_total",
			Help: "Requests to the external text-generation service.",
		}, []string{"purpose", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rootcause_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.OrdersFused, r.SideMatches, r.OrdersLate, r.OrdersFailed, r.LLMRequests, r.StageDuration)
	return r
}

// ObserveStage records the duration since start for a pipeline stage.
// Safe to call on a nil receiver.
func (r *Recorder) ObserveStage(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// LLMRequest counts one external-service call outcome.
// Safe to call on a nil receiver.
func (r *Recorder) LLMRequest(purpose, outcome string) {
	if r == nil {
		return
	}
	r.LLMRequests.WithLabelValues(purpose, outcome).Inc()
}

// Gatherer exposes the registry for tests and custom exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all collected metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Gatherer()); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
