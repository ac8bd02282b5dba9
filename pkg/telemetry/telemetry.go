// Package telemetry exposes Prometheus counters for the bridge: HTTP
// request traffic, backend retries and live event streams.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animbridge_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animbridge_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	backendRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animbridge_backend_retries_total",
		Help: "Backend generate calls that were retried after a transient failure.",
	})

	backendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animbridge_backend_calls_total",
		Help: "Terminal backend generate outcomes.",
	}, []string{"outcome"})

	streamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animbridge_stream_events_total",
		Help: "Events written to SSE streams by type.",
	}, []string{"type"})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animbridge_active_streams",
		Help: "SSE streams currently open.",
	})
)

// ObserveRetry counts one backend retry.
func ObserveRetry() { backendRetries.Inc() }

// ObserveBackendCall records a terminal backend outcome ("completed",
// "error", "conversation" or "failed").
func ObserveBackendCall(outcome string) { backendCalls.WithLabelValues(outcome).Inc() }

// ObserveStreamEvent counts one event written to a stream.
func ObserveStreamEvent(eventType string) { streamEvents.WithLabelValues(eventType).Inc() }

// StreamOpened/StreamClosed track the live stream gauge.
func StreamOpened() { activeStreams.Inc() }
func StreamClosed() { activeStreams.Dec() }

// statusRecorder captures the response status code. It forwards Flush so
// SSE responses keep streaming through the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency. The route label uses the
// mux path template rather than the raw path to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
