package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prodlake"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the collectors for one pipeline run. Each instance owns its registry so runs (and
// tests) do not share state.
type Metrics struct {
	Registry *prometheus.Registry

	BuildInfo     *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
	StageRuns     *prometheus.CounterVec
	Rows          *prometheus.GaugeVec
	NullCoerced   prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information of prodlake",
			},
			[]string{"version", "commit", "date"},
		),
		StageDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of the last run of each pipeline stage",
			},
			[]string{"stage"},
		),
		StageRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_runs_total",
				Help:      "Pipeline stage executions by outcome",
			},
			[]string{"stage", "status"},
		),
		Rows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rows",
				Help:      "Rows produced by each stage, per dataset or table",
			},
			[]string{"stage", "dataset"},
		),
		NullCoerced: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "load_null_coerced",
				Help:      "Values stored as NULL because they did not parse as the column type",
			},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last fully successful pipeline run",
			},
		),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.StageRuns.WithLabelValues(stage, status).Inc()
}

func (m *Metrics) SetRows(stage, dataset string, n int) {
	m.Rows.WithLabelValues(stage, dataset).Set(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
