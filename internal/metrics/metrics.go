package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fortune"

// Metrics groups the collectors the order flow reports to. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	ordersCreated      prometheus.Counter
	paymentRequests    *prometheus.CounterVec
	confirmOutcomes    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	paymentsSwept      prometheus.Counter
	paymentsRecovered  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders accepted and stored.",
		}),
		paymentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_requests_total",
			Help:      "Payment initiations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		confirmOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_outcomes_total",
			Help:      "ConfirmAndGenerate results by outcome kind.",
		}, []string{"outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of letter generation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		paymentsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_swept_total",
			Help:      "Stale pending payments cancelled by the sweeper.",
		}),
		paymentsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recovered_total",
			Help:      "Stale pending payments the provider had captured, recorded as paid by the sweeper.",
		}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.paymentRequests,
		m.confirmOutcomes,
		m.generationDuration,
		m.httpRequests,
		m.httpDuration,
		m.paymentsSwept,
		m.paymentsRecovered,
	)
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) PaymentRequested(provider, outcome string) {
	if m == nil {
		return
	}
	m.paymentRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ConfirmOutcome(outcome string) {
	if m == nil {
		return
	}
	m.confirmOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGeneration(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) PaymentsSwept(n int) {
	if m == nil {
		return
	}
	m.paymentsSwept.Add(float64(n))
}

func (m *Metrics) PaymentsRecovered(n int) {
	if m == nil {
		return
	}
	m.paymentsRecovered.Add(float64(n))
}
