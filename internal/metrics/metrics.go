// Package metrics counts parameter writes, validation rejections,
// decryption failures, imports and key rotations.
//
// Metrics live on a private registry. There is no scrape endpoint; the CLI
// dumps the registry to a node-exporter textfile when metrics_textfile is
// configured. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "params"

// Write outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	writesTotal        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	decryptFailures    prometheus.Counter
	importRecordsTotal *prometheus.CounterVec
	rotationsTotal     *prometheus.CounterVec
	rotationParameters prometheus.Gauge
	rotationDuration   prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_total",
				Help:      "Parameter writes by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Writes rejected by a validator, by validator name",
			},
			[]string{"validator"},
		),
		decryptFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decrypt_failures_total",
				Help:      "Stored values that failed to decrypt",
			},
		),
		importRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_records_total",
				Help:      "Imported records by result",
			},
			[]string{"result"},
		),
		rotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rotation",
				Name:      "total",
				Help:      "Key rotation phases by phase and status",
			},
			[]string{"phase", "status"},
		),
		rotationParameters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "rotation",
				Name:      "parameters",
				Help:      "Encrypted parameters re-sealed by the last rotation",
			},
		),
		rotationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rotation",
				Name:      "duration_seconds",
				Help:      "Duration of rotation apply in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
	m.registry.MustRegister(
		m.writesTotal,
		m.validationFailures,
		m.decryptFailures,
		m.importRecordsTotal,
		m.rotationsTotal,
		m.rotationParameters,
		m.rotationDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordWrite counts one write of the given operation (create, set, update,
// delete, validators).
func (m *Metrics) RecordWrite(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.writesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordValidationFailure counts a rejection by the named validator.
func (m *Metrics) RecordValidationFailure(validator string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(validator).Inc()
}

// RecordDecryptFailure counts a stored value that did not open.
func (m *Metrics) RecordDecryptFailure() {
	if m == nil {
		return
	}
	m.decryptFailures.Inc()
}

// RecordImport counts one imported record by result (created, updated,
// skipped, failed).
func (m *Metrics) RecordImport(result string) {
	if m == nil {
		return
	}
	m.importRecordsTotal.WithLabelValues(result).Inc()
}

// RecordRotation counts a rotation phase (prepare, apply). For a successful
// apply, count is the number of parameters re-sealed.
func (m *Metrics) RecordRotation(phase string, err error, count int, seconds float64) {
	if m == nil {
		return
	}
	status := OutcomeOK
	if err != nil {
		status = OutcomeError
	}
	m.rotationsTotal.WithLabelValues(phase, status).Inc()
	if phase == "apply" {
		m.rotationDuration.Observe(seconds)
		if err == nil {
			m.rotationParameters.Set(float64(count))
		}
	}
}

// WriteTextfile writes the registry in the text exposition format to path,
// creating parent directories.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
