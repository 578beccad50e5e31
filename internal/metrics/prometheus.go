package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payment_gate"

// PrometheusRecorder exposes events as payment_gate_events_total and
// payment_gate_latency_seconds.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Payment verification and admission events",
		},
		[]string{"event", LabelNetwork, LabelOutcome},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Latency of chain and admission operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", LabelNetwork},
	)

	for _, c := range []prometheus.Collector{counters, histogram} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"event":      name,
		LabelNetwork: labels[LabelNetwork],
		LabelOutcome: labels[LabelOutcome],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation":  name,
		LabelNetwork: labels[LabelNetwork],
	}).Observe(d.Seconds())
}
