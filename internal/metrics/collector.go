// Package metrics holds the bot's Prometheus series and the HTTP endpoint
// that exposes them.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "caloriebot"

// Registry is the registry served by the metrics endpoint. Series below are
// usable before Register is called; they are only exposed after it.
var Registry = prometheus.NewRegistry()

var once sync.Once

var (
	MessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Inbound chat messages handled.",
	})

	PanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unhandled_errors_total",
		Help:      "Messages that ended in the generic failure reply.",
	})

	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "estimations_in_flight",
		Help:      "Estimations currently waiting on the provider.",
	})

	// DecodeFallbacks counts photos forwarded as raw bytes because they could
	// not be decoded. A steady rise points at clients sending unsupported formats.
	DecodeFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_decode_fallback_total",
		Help:      "Photos forwarded undecoded.",
	})

	PhotosRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "photos_rejected_total",
		Help:      "Photos rejected as too small.",
	})

	BusDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_total",
		Help:      "Inbound messages dropped because the bus stayed full.",
	})

	ProviderLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Inference call latency in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 6, 10, 15},
	})

	EstimatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimates_total",
		Help:      "Estimations by input kind and outcome.",
	}, []string{"source", "outcome"})
)

// Register adds the bot series plus Go runtime and process collectors to
// Registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			MessagesTotal,
			PanicsTotal,
			InFlight,
			DecodeFallbacks,
			PhotosRejected,
			BusDropped,
			ProviderLatency,
			EstimatesTotal,
		)
	})
}

// Estimate returns the outcome counter for a source/outcome pair.
func Estimate(source, outcome string) prometheus.Counter {
	return EstimatesTotal.WithLabelValues(source, outcome)
}
