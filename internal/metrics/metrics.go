// Package metrics exports parser activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/logvars/internal/logparse"
)

// Metrics holds the Prometheus collectors for parsing and export.
type Metrics struct {
	LinesScanned       prometheus.Counter
	VariablesExtracted *prometheus.CounterVec
	IncompletePayloads prometheus.Counter
	ChunksProcessed    prometheus.Counter
	ParsesTotal        *prometheus.CounterVec
	ParseDuration      prometheus.Histogram
	LastParseVariables prometheus.Gauge
	RedactionsTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logvars_lines_scanned_total",
			Help: "Total log lines classified",
		}),
		VariablesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logvars_variables_extracted_total",
			Help: "Total buffer variables extracted by type",
		}, []string{"type"}),
		IncompletePayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logvars_incomplete_payloads_total",
			Help: "Multi-line payloads that ended before their brackets balanced",
		}),
		ChunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logvars_chunks_processed_total",
			Help: "Total chunks processed in chunked mode",
		}),
		ParsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logvars_parses_total",
			Help: "Total parse runs by result",
		}, []string{"result"}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logvars_parse_duration_seconds",
			Help:    "Duration of a full parse run",
			Buckets: prometheus.DefBuckets,
		}),
		LastParseVariables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logvars_last_parse_variables",
			Help: "Variables extracted by the most recent parse",
		}),
		RedactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logvars_redactions_total",
			Help: "Total redactions applied by pattern",
		}, []string{"pattern"}),
	}
	reg.MustRegister(
		m.LinesScanned,
		m.VariablesExtracted,
		m.IncompletePayloads,
		m.ChunksProcessed,
		m.ParsesTotal,
		m.ParseDuration,
		m.LastParseVariables,
		m.RedactionsTotal,
	)
	return m
}

// LineScanned implements logparse.Observer.
func (m *Metrics) LineScanned() { m.LinesScanned.Inc() }

// VariableExtracted implements logparse.Observer.
func (m *Metrics) VariableExtracted(t logparse.VarType) {
	m.VariablesExtracted.WithLabelValues(t.String()).Inc()
}

// Incomplete implements logparse.Observer.
func (m *Metrics) Incomplete() { m.IncompletePayloads.Inc() }

// ChunkDone implements logparse.Observer.
func (m *Metrics) ChunkDone() { m.ChunksProcessed.Inc() }

// Redacted counts one redaction hit. It matches redact.Redactor.OnHit.
func (m *Metrics) Redacted(pattern string) {
	m.RedactionsTotal.WithLabelValues(pattern).Inc()
}

// ObserveParse records the outcome of one parse run.
func (m *Metrics) ObserveParse(started time.Time, vars int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ParsesTotal.WithLabelValues(result).Inc()
	m.ParseDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		m.LastParseVariables.Set(float64(vars))
	}
}

var _ logparse.Observer = (*Metrics)(nil)
