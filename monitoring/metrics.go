package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the dashboard's Prometheus collectors.
type Metrics struct {
	predictions         *prometheus.CounterVec
	predictionErrors    *prometheus.CounterVec
	predictionLatency   prometheus.Histogram
	artifactResolutions *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	wsClients           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registerer. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipmonitor_predictions_total",
			Help: "Predictions served, by label and probability availability",
		}, []string{"label", "probabilities"}),
		predictionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipmonitor_prediction_errors_total",
			Help: "Rejected or failed prediction requests, by reason",
		}, []string{"reason"}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shipmonitor_prediction_duration_seconds",
			Help:    "Time spent running the model for one request",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		artifactResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipmonitor_artifact_resolutions_total",
			Help: "Model artifact provider attempts, by provider and result",
		}, []string{"provider", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipmonitor_http_requests_total",
			Help: "HTTP requests, by route and status code",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipmonitor_http_request_duration_seconds",
			Help:    "HTTP request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shipmonitor_ws_clients",
			Help: "Connected live prediction feed clients",
		}),
	}

	registerer.MustRegister(
		m.predictions,
		m.predictionErrors,
		m.predictionLatency,
		m.artifactResolutions,
		m.httpRequests,
		m.httpDuration,
		m.wsClients,
	)
	return m
}

// ObservePrediction records one served prediction.
func (m *Metrics) ObservePrediction(label string, probabilities bool, elapsed time.Duration) {
	avail := "unavailable"
	if probabilities {
		avail = "available"
	}
	m.predictions.WithLabelValues(label, avail).Inc()
	m.predictionLatency.Observe(elapsed.Seconds())
}

// PredictionFailed counts a rejected request.
func (m *Metrics) PredictionFailed(reason string) {
	m.predictionErrors.WithLabelValues(reason).Inc()
}

// ObserveArtifact matches artifact.Observer and counts provider attempts.
func (m *Metrics) ObserveArtifact(provider string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.artifactResolutions.WithLabelValues(provider, result).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) clientConnected() {
	m.wsClients.Inc()
}

func (m *Metrics) clientDisconnected() {
	m.wsClients.Dec()
}
