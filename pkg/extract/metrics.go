package extract

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts extraction work. One Metrics may be shared by extractors
// running in parallel.
//
// Metrics:
// * soitools_components_total{kind} - counter
// * soitools_bytes_written_total - counter
// * soitools_failures_total{kind} - counter
// * soitools_section_duration_seconds - histogram
type Metrics struct {
	components      *prometheus.CounterVec
	bytesWritten    prometheus.Counter
	failures        *prometheus.CounterVec
	sectionDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		components: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soitools",
			Name:      "components_total",
			Help:      "Components extracted, by kind.",
		}, []string{"kind"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soitools",
			Name:      "bytes_written_total",
			Help:      "Bytes written to output files.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soitools",
			Name:      "failures_total",
			Help:      "Components skipped because their data was malformed, by kind.",
		}, []string{"kind"}),
		sectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soitools",
			Name:      "section_duration_seconds",
			Help:      "Time spent reading and writing one section.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.components, m.bytesWritten, m.failures, m.sectionDuration)
	}
	return m
}
