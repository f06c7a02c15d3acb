package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per HTTP request.
type Recorder interface {
	ObserveRequest(method, endpoint string, status int, elapsed time.Duration)
}

// HTTPMetrics records request counts and latencies.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewHTTPMetrics registers <namespace>_requests_total{method,endpoint,http_status}
// and <namespace>_request_latency_seconds{endpoint}.
func NewHTTPMetrics(registry prometheus.Registerer, namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		Requests: NewCounterVec(registry,
			namespace+"_requests_total",
			"Total HTTP requests",
			[]string{"method", "endpoint", "http_status"}),
		Latency: NewHistogramVec(registry,
			namespace+"_request_latency_seconds",
			"Request latency",
			RequestBuckets(),
			[]string{"endpoint"}),
	}
}

// ObserveRequest implements Recorder.
func (m *HTTPMetrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.Latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Instrument wraps next so every request is reported to recorder.
//
// The start time lives on the request's own stack frame, so concurrent
// requests never share timing state. The endpoint label is the ServeMux
// pattern that matched, or "unmatched", which keeps label cardinality bounded.
func Instrument(recorder Recorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		recorder.ObserveRequest(r.Method, endpoint, sw.status, time.Since(start))
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
