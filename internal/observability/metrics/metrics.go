package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "visionhelper"

// AssistantMetrics exposes counters/histograms for the reading assistant.
// A nil *AssistantMetrics is a valid no-op observer.
type AssistantMetrics struct {
	generationTotal   *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	generationRetries *prometheus.CounterVec
	cacheTotal        *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	queueWait         prometheus.Histogram
	personaSwitches   *prometheus.CounterVec
	classifications   *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation requests by backend and outcome",
		}, []string{"backend", "outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "latency_seconds",
			Help:      "End-to-end generation latency including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"backend", "outcome"}),
		generationRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "retries_total",
			Help:      "Generation retries by backend and reason",
		}, []string{"backend", "reason"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "cache_lookups_total",
			Help:      "Reply cache lookups",
		}, []string{"hit"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Requests waiting for dispatch",
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "wait_seconds",
			Help:      "Time a request spent queued before dispatch",
			Buckets:   []float64{0, 0.5, 1, 3, 6, 12, 30, 60},
		}),
		personaSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persona",
			Name:      "switches_total",
			Help:      "Persona switches",
		}, []string{"from", "to"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Classified inputs by category",
		}, []string{"category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.generationTotal, m.generationLatency, m.generationRetries, m.cacheTotal,
		m.queueDepth, m.queueWait,
		m.personaSwitches, m.classifications,
		m.httpRequests, m.httpLatency,
	)
	return m
}

func (m *AssistantMetrics) ObserveGeneration(backend, outcome string, attempts int, seconds float64) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(backend, outcome).Inc()
	m.generationLatency.WithLabelValues(backend, outcome).Observe(seconds)
}

func (m *AssistantMetrics) ObserveRetry(backend, reason string) {
	if m == nil {
		return
	}
	m.generationRetries.WithLabelValues(backend, reason).Inc()
}

func (m *AssistantMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (m *AssistantMetrics) ObserveQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *AssistantMetrics) ObserveQueueWait(seconds float64) {
	if m == nil {
		return
	}
	m.queueWait.Observe(seconds)
}

func (m *AssistantMetrics) ObservePersonaSwitch(from, to string) {
	if m == nil {
		return
	}
	m.personaSwitches.WithLabelValues(from, to).Inc()
}

func (m *AssistantMetrics) ObserveClassification(category string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(category).Inc()
}

func (m *AssistantMetrics) ObserveHTTPRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(seconds)
}
