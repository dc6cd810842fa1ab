package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// WorkerMetrics covers the inbox worker: polls, per-message outcomes and the
// same triage counters the API exports.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	pollTotal       *prometheus.CounterVec
	fetchedTotal    prometheus.Counter
	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge

	triageTotal             *prometheus.CounterVec
	generationFailuresTotal *prometheus.CounterVec
	breakerState            *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	pollTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbox",
			Name:      "polls_total",
			Help:      "Mailbox polls by status.",
		},
		[]string{"service", "status"},
	)
	fetchedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "inbox",
			Name:        "messages_fetched_total",
			Help:        "Unseen messages fetched from the mailbox.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbox",
			Name:      "messages_processed_total",
			Help:      "Processed inbox messages by category and status.",
		},
		[]string{"service", "category", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inbox",
			Name:      "message_duration_seconds",
			Help:      "Inbox message triage duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "inbox",
			Name:        "messages_in_flight",
			Help:        "Number of inbox messages being triaged.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	triageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "triage",
			Name:      "emails_total",
			Help:      "Triaged emails by category and reply source.",
		},
		[]string{"service", "category", "reply_source"},
	)
	generationFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reply",
			Name:      "generation_failures_total",
			Help:      "Reply generations that fell back to a template, by reason.",
		},
		[]string{"service", "reason"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(pollTotal, fetchedTotal, processTotal, processDuration, processInFlight, triageTotal, generationFailuresTotal, breakerState)

	return &WorkerMetrics{
		registry:                registry,
		service:                 service,
		pollTotal:               pollTotal,
		fetchedTotal:            fetchedTotal,
		processTotal:            processTotal,
		processDuration:         processDuration,
		processInFlight:         processInFlight,
		triageTotal:             triageTotal,
		generationFailuresTotal: generationFailuresTotal,
		breakerState:            breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObservePoll(fetched int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.pollTotal.WithLabelValues(m.service, status).Inc()
	if fetched > 0 {
		m.fetchedTotal.Add(float64(fetched))
	}
}

func (m *WorkerMetrics) StartMessage() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishMessage(category domain.Category, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	label := string(category)
	if label == "" {
		label = "none"
	}
	m.processTotal.WithLabelValues(m.service, label, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveTriage(category domain.Category, source domain.ReplySource) {
	m.triageTotal.WithLabelValues(m.service, string(category), string(source)).Inc()
}

func (m *WorkerMetrics) ObserveGenerationFailure(reason domain.GenerationFailure) {
	if reason == "" {
		reason = domain.GenerationError
	}
	m.generationFailuresTotal.WithLabelValues(m.service, string(reason)).Inc()
}

func (m *WorkerMetrics) ObserveBreakerState(operation, _, to string) {
	value := 1.0
	if to == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
