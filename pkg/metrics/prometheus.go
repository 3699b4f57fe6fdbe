package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ride_lifecycle"

// Metrics holds the prometheus collectors for the ride engine and the HTTP layer
type Metrics struct {
	RidesRequested      *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	MatchLatency        prometheus.Histogram
	CandidatesFound     prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RidesRequested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rides_requested_total",
			Help:      "Rides created, by vehicle type and whether the fare is approximate",
		}, []string{"vehicle_type", "approximate"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ride_transitions_total",
			Help:      "Successful ride status transitions, by target status",
		}, []string{"status"}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_latency_seconds",
			Help:      "Time spent locating drivers for a new ride",
			Buckets:   prometheus.DefBuckets,
		}),
		CandidatesFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_candidates",
			Help:      "Drivers notified per new ride",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.RidesRequested,
		m.Transitions,
		m.MatchLatency,
		m.CandidatesFound,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// RideRequested counts a created ride
func (m *Metrics) RideRequested(vehicleType string, _ float64, approximate bool) {
	m.RidesRequested.WithLabelValues(vehicleType, strconv.FormatBool(approximate)).Inc()
}

// RideTransitioned counts a status transition
func (m *Metrics) RideTransitioned(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

// DriversMatched observes a driver search
func (m *Metrics) DriversMatched(count int, latency time.Duration) {
	m.MatchLatency.Observe(latency.Seconds())
	m.CandidatesFound.Observe(float64(count))
}

// ObserveHTTP records one handled request
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}
