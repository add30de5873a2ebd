// Package metrics exposes sync outcomes as Prometheus metrics, served over
// HTTP in serve mode or written to a node-exporter textfile after a run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

const namespace = "orgsync"

// Metrics records mutation and run outcomes. It implements
// reconciler.Observer.
type Metrics struct {
	registry *prometheus.Registry

	mutations *prometheus.CounterVec
	runs      *prometheus.CounterVec
	entities  *prometheus.GaugeVec
	duration  prometheus.Gauge
	lastRun   prometheus.Gauge
	success   prometheus.Gauge
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total number of mutations sent to the target.",
		}, []string{"kind", "operation", "result"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of full sync runs.",
		}, []string{"result"}),
		entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_entities",
			Help:      "Entities per outcome in the last full run.",
		}, []string{"kind", "outcome"}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last full run.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last full run finished.",
		}),
		success: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last full run completed without errors (1/0).",
		}),
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveMutation implements mutation.Observer.
func (m *Metrics) ObserveMutation(kind payload.Kind, op string, err error) {
	m.mutations.WithLabelValues(kind.String(), op, result(err)).Inc()
}

// ObserveRun implements reconciler.Observer.
func (m *Metrics) ObserveRun(report *reconciler.Report, err error) {
	res := result(err)
	if err == nil && report.HasFailures() {
		res = "partial"
	}
	m.runs.WithLabelValues(res).Inc()

	for _, kind := range []payload.Kind{payload.KindOrgUnit, payload.KindUser} {
		s := report.Stats(kind)
		for outcome, n := range map[string]int{
			"created":   s.Created,
			"updated":   s.Updated,
			"deleted":   s.Deleted,
			"unchanged": s.Unchanged,
			"skipped":   s.Skipped,
			"failed":    s.Failed,
		} {
			m.entities.WithLabelValues(kind.String(), outcome).Set(float64(n))
		}
	}

	m.duration.Set(report.Duration.Seconds())
	m.lastRun.Set(float64(report.EndTime.Unix()))
	if res == "success" {
		m.success.Set(1)
	} else {
		m.success.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteToTextfile writes every metric to path atomically, for the node
// exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.IsTransient(err):
		return "transient"
	case errors.IsCanceled(err):
		return "canceled"
	default:
		return "error"
	}
}
