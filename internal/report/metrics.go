package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"msg-deidentifier/internal/anonymizer"
)

const namespace = "deidentify"

// Metrics holds the counters of one run on a private registry, written out
// in the node_exporter textfile format.
type Metrics struct {
	registry *prometheus.Registry

	files          *prometheus.CounterVec
	messages       prometheus.Counter
	fields         prometheus.Counter
	datesShifted   prometheus.Counter
	subjects       prometheus.Gauge
	safeHarbor     prometheus.Gauge
	violations     *prometheus.GaugeVec
	durationSecond prometheus.Gauge
}

// NewMetrics registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed, by outcome and standard",
		}, []string{"status", "standard"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages de-identified",
		}),
		fields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_modified_total",
			Help:      "Field values replaced, shifted or removed",
		}),
		datesShifted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_shifted_total",
			Help:      "Date values shifted",
		}),
		subjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_subjects",
			Help:      "Distinct subjects seen in the run",
		}),
		safeHarbor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "meets_safe_harbor",
			Help:      "1 when no regulated identifier category survived the run",
		}),
		violations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "violated_category",
			Help:      "1 for each identifier category that survived the run",
		}, []string{"category"}),
		durationSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run",
		}),
	}
	m.registry.MustRegister(m.files, m.messages, m.fields, m.datesShifted,
		m.subjects, m.safeHarbor, m.violations, m.durationSecond)
	return m
}

// Observe adds batch to the metrics.
func (m *Metrics) Observe(batch *anonymizer.BatchResult) {
	for _, f := range batch.Files {
		standard := string(f.Standard)
		if standard == "" {
			standard = "unknown"
		}
		switch {
		case f.Skipped:
			m.files.WithLabelValues(anonymizer.StatusSkipped, standard).Inc()
		case f.Success:
			m.files.WithLabelValues(anonymizer.StatusSuccess, standard).Inc()
		default:
			m.files.WithLabelValues(anonymizer.StatusFailed, standard).Inc()
		}
	}

	s := batch.Statistics
	m.messages.Add(float64(s.TotalMessages))
	m.fields.Add(float64(s.FieldsModified))
	m.datesShifted.Add(float64(s.DatesShifted))
	m.subjects.Set(float64(s.UniqueSubjects()))
	m.durationSecond.Set(batch.Elapsed.Seconds())

	if batch.Compliance.MeetsSafeHarbor {
		m.safeHarbor.Set(1)
	} else {
		m.safeHarbor.Set(0)
	}
	for _, c := range batch.Compliance.ViolatedCategories {
		m.violations.WithLabelValues(c.String()).Set(1)
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the metrics atomically in the textfile format.
func (m *Metrics) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("could not write metrics: %w", err)
	}
	return nil
}
