package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	WebsocketConnections prometheus.Gauge
	Rooms                prometheus.Gauge
	Streams              prometheus.Gauge
	SignalingMessages    *prometheus.CounterVec
	DataFrames           *prometheus.CounterVec
	DataBytes            prometheus.Counter
	ActiveRecordings     prometheus.Gauge
	TokensIssued         prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers the server metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bun_http_requests_total",
				Help: "Count of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bun_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.3, 1, 3},
			},
			[]string{"method", "route"},
		),
		WebsocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bun_websocket_connections",
			Help: "Current WebSocket connections",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bun_rooms",
			Help: "Rooms with at least one client",
		}),
		Streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bun_streams",
			Help: "Published streams",
		}),
		SignalingMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bun_signaling_messages_total",
				Help: "Signaling messages received, by type",
			},
			[]string{"type"},
		),
		DataFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bun_data_frames_total",
				Help: "Data channel frames, by outcome",
			},
			[]string{"result"},
		),
		DataBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bun_data_bytes_total",
			Help: "Bytes forwarded to subscribers",
		}),
		ActiveRecordings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bun_recordings_active",
			Help: "Recordings in progress",
		}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bun_tokens_issued_total",
			Help: "Room tokens issued",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.WebsocketConnections,
		m.Rooms,
		m.Streams,
		m.SignalingMessages,
		m.DataFrames,
		m.DataBytes,
		m.ActiveRecordings,
		m.TokensIssued,
	)
	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Middleware records request counts and durations per route template.
// Websocket upgrades are passed through untouched since they hijack the
// connection.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if route == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.statusCode)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
