// Package metrics holds the Prometheus collectors for verification.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/optimode/mailverify/types"
)

// Metrics records verification statuses and SMTP probe outcomes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	verifications *prometheus.CounterVec
	probes        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	catchAll      prometheus.Counter
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		verifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailverify_verifications_total",
				Help: "Completed verifications by final status.",
			},
			[]string{"status"},
		),
		probes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailverify_smtp_probes_total",
				Help: "SMTP dialogues by port and outcome.",
			},
			[]string{"port", "outcome"},
		),
		probeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailverify_smtp_probe_duration_seconds",
				Help:    "SMTP dialogue duration.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"port"},
		),
		catchAll: f.NewCounter(prometheus.CounterOpts{
			Name: "mailverify_catchall_detected_total",
			Help: "Domains found to accept any recipient.",
		}),
	}
}

func (m *Metrics) Verification(status types.Status) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) Probe(o types.ProbeOutcome) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(o.Port, string(o.Outcome)).Inc()
	m.probeDuration.WithLabelValues(o.Port).Observe(float64(o.Elapsed) / float64(time.Second))
}

func (m *Metrics) CatchAll() {
	if m == nil {
		return
	}
	m.catchAll.Inc()
}
