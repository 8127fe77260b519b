package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics records stage and run outcomes in Prometheus.
type Metrics struct {
	stageDurationSeconds *prometheus.HistogramVec
	runStatusCounter     *prometheus.CounterVec
	recordsLoaded        prometheus.Counter
	lastSuccess          prometheus.Gauge
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// NewMetrics creates the ingestion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solar_ingest_stage_duration_seconds",
			Help:    "Duration of ingestion stages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_ingest_runs_total",
			Help: "Total number of finished ingestion runs by status.",
		}, []string{"status"}),
		recordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solar_ingest_records_loaded_total",
			Help: "Total records inserted into the radiation table.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solar_ingest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
	}

	reg.MustRegister(m.stageDurationSeconds)
	reg.MustRegister(m.runStatusCounter)
	reg.MustRegister(m.recordsLoaded)
	reg.MustRegister(m.lastSuccess)

	return m
}

func (m *Metrics) observeStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDurationSeconds.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

func (m *Metrics) recordLoaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsLoaded.Add(float64(n))
}

func (m *Metrics) observeRun(report RunReport) {
	if m == nil {
		return
	}
	m.runStatusCounter.WithLabelValues(string(report.Status)).Inc()
	if report.Status == StatusSucceeded {
		m.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
