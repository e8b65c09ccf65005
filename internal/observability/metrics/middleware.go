package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// ResponseRecorder captures the status code written by downstream handlers.
type ResponseRecorder struct {
	http.ResponseWriter
	status int
}

// NewResponseRecorder wraps a ResponseWriter, defaulting the status to 200.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rr *ResponseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

// Status returns the recorded response status.
func (rr *ResponseRecorder) Status() int {
	return rr.status
}

// Instrument records request totals and latency for every request passing
// through it.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
