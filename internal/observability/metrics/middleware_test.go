package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestResponseRecorderDefaultsToOK(t *testing.T) {
	rr := NewResponseRecorder(httptest.NewRecorder())
	if rr.Status() != http.StatusOK {
		t.Fatalf("expected default status 200, got %d", rr.Status())
	}
}

func TestResponseRecorderCapturesStatus(t *testing.T) {
	underlying := httptest.NewRecorder()
	rr := NewResponseRecorder(underlying)

	rr.WriteHeader(http.StatusNotFound)

	if rr.Status() != http.StatusNotFound {
		t.Fatalf("expected recorded status 404, got %d", rr.Status())
	}
	if underlying.Code != http.StatusNotFound {
		t.Fatalf("expected status propagated to underlying writer, got %d", underlying.Code)
	}
}

func TestInstrumentCollapsesMediaIDsToOneSeries(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
	}))

	const requests = 50
	for i := 0; i < requests; i++ {
		mediaID := fmt.Sprintf("0b9cdf0e-2f0f-4a3c-9f57-%012d", i)
		req := httptest.NewRequest(http.MethodPost, "/api/media/"+mediaID+"/view", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	series := 0
	var total float64
	for _, family := range families {
		if family.GetName() != "streamgate_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := make(map[string]string, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["status"] != "207" {
				continue
			}
			series++
			if labels["path"] != "/api/media/:id/view" {
				t.Errorf("unexpected path label %q", labels["path"])
			}
			total += metric.GetCounter().GetValue()
		}
	}

	if series != 1 {
		t.Fatalf("expected 1 series for %d distinct media IDs, got %d", requests, series)
	}
	if total != float64(requests) {
		t.Fatalf("expected series count %d, got %v", requests, total)
	}
}
