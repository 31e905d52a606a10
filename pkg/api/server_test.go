package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/mprscape/pkg/api"
	"github.com/matzehuels/mprscape/pkg/cache"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/observability"
	"github.com/matzehuels/mprscape/pkg/observability/prom"
	"github.com/matzehuels/mprscape/pkg/pipeline"
	"github.com/matzehuels/mprscape/pkg/recon"
	"github.com/matzehuels/mprscape/pkg/recon/recontest"
)

func newServer(t *testing.T, cfg api.Config) http.Handler {
	t.Helper()
	cfg.Logger = log.New(io.Discard)
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, cfg.Logger)
	return api.New(runner, cfg).Handler()
}

func body(t *testing.T, prob recon.Problem, opts pipeline.Options) []byte {
	t.Helper()
	data, err := json.Marshal(api.Request{Problem: mio.ProblemDocOf(prob), Options: opts})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return data
}

func post(t *testing.T, h http.Handler, path string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newServer(t, api.Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	wantStatus(t, rec, http.StatusOK)

	resp := decodeJSON[api.HealthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("Status = %v, want ok", resp.Status)
	}
	if resp.Build.Version == "" {
		t.Error("Build.Version is empty")
	}
}

func TestReconcile(t *testing.T) {
	h := newServer(t, api.Config{})
	rec := post(t, h, "/v1/reconcile", body(t, recontest.Duplications(), pipeline.Options{}))
	wantStatus(t, rec, http.StatusOK)

	resp := decodeJSON[api.ReconcileResponse](t, rec)
	if resp.MinCost != 4 {
		t.Errorf("MinCost = %v, want 4", resp.MinCost)
	}
	if resp.Count != "1" {
		t.Errorf("Count = %v, want 1", resp.Count)
	}
	if resp.RunID == "" || resp.ProblemHash == "" {
		t.Errorf("RunID = %q, ProblemHash = %q, want both set", resp.RunID, resp.ProblemHash)
	}
	g, err := resp.Graph.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if g.EventCount() != resp.Events {
		t.Errorf("rebuilt graph has %d events, want %d", g.EventCount(), resp.Events)
	}
}

func TestReconcileCostOverride(t *testing.T) {
	h := newServer(t, api.Config{})
	dup := 0.5
	rec := post(t, h, "/v1/reconcile", body(t, recontest.Duplications(), pipeline.Options{Duplication: &dup}))
	wantStatus(t, rec, http.StatusOK)

	if got := decodeJSON[api.ReconcileResponse](t, rec).MinCost; got != 1 {
		t.Errorf("MinCost = %v, want 1", got)
	}
}

func TestEngineEndpoints(t *testing.T) {
	h := newServer(t, api.Config{})
	data := body(t, recontest.Ambiguous(), pipeline.Options{Samples: 4, Clusters: 2, Trials: 5})

	t.Run("median", func(t *testing.T) {
		rec := post(t, h, "/v1/median", data)
		wantStatus(t, rec, http.StatusOK)
		resp := decodeJSON[api.MedianResponse](t, rec)
		if len(resp.Reconciliation.Events) == 0 {
			t.Error("median has no events")
		}
	})

	t.Run("sample", func(t *testing.T) {
		rec := post(t, h, "/v1/sample", data)
		wantStatus(t, rec, http.StatusOK)
		if got := len(decodeJSON[api.SampleResponse](t, rec).Reconciliations); got != 4 {
			t.Errorf("got %d samples, want 4", got)
		}
	})

	t.Run("histogram", func(t *testing.T) {
		rec := post(t, h, "/v1/histogram", data)
		wantStatus(t, rec, http.StatusOK)
		resp := decodeJSON[api.HistogramResponse](t, rec)
		if resp.Histogram == nil || resp.Histogram.Diameter() != resp.Diameter {
			t.Errorf("Histogram = %v, Diameter = %d", resp.Histogram, resp.Diameter)
		}
		if resp.Diameter <= 0 {
			t.Errorf("Diameter = %d, want > 0 for tied MPRs", resp.Diameter)
		}
	})

	t.Run("cluster", func(t *testing.T) {
		rec := post(t, h, "/v1/cluster", data)
		wantStatus(t, rec, http.StatusOK)
		if got := len(decodeJSON[api.ClusterResponse](t, rec).Groups); got != 2 {
			t.Errorf("got %d groups, want 2", got)
		}
	})

	t.Run("regions", func(t *testing.T) {
		rec := post(t, h, "/v1/regions", data)
		wantStatus(t, rec, http.StatusOK)
		resp := decodeJSON[api.RegionsResponse](t, rec)
		if len(resp.Regions) == 0 {
			t.Error("no regions")
		}
		if resp.Rect.TransferMax == 0 {
			t.Error("Rect was not defaulted")
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := post(t, h, "/v1/stats", data)
		wantStatus(t, rec, http.StatusOK)
		resp := decodeJSON[api.StatsResponse](t, rec)
		if resp.Result == nil || len(resp.Costs) != 5 {
			t.Fatalf("Result = %+v, want 5 trial costs", resp.Result)
		}
		if resp.PValue < 0 || resp.PValue > 1 {
			t.Errorf("PValue = %v, want within [0, 1]", resp.PValue)
		}
	})
}

func TestCSV(t *testing.T) {
	h := newServer(t, api.Config{})
	rec := post(t, h, "/v1/csv", body(t, recontest.Duplications(), pipeline.Options{}))
	wantStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	records, err := mio.ReadCSV(rec.Body)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("got %d records, want 5", len(records))
	}
}

func TestDOT(t *testing.T) {
	h := newServer(t, api.Config{})
	data := body(t, recontest.Duplications(), pipeline.Options{})

	rec := post(t, h, "/v1/dot?frequencies=true", data)
	wantStatus(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Body.String(), "digraph G {") {
		t.Errorf("body does not start with a digraph: %.40q", rec.Body.String())
	}

	rec = post(t, h, "/v1/dot?format=svg", data)
	wantStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("SVG output missing <svg element")
	}

	rec = post(t, h, "/v1/dot?format=png", data)
	wantStatus(t, rec, http.StatusUnsupportedMediaType)
	rec = post(t, h, "/v1/dot?frequencies=maybe", data)
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestErrors(t *testing.T) {
	h := newServer(t, api.Config{MaxBodyBytes: 4096})
	neg := -1.0

	tests := []struct {
		name     string
		path     string
		data     []byte
		status   int
		wantCode string
	}{
		{"malformed", "/v1/reconcile", []byte("{"), http.StatusBadRequest, "INVALID_FORMAT"},
		{"unknown field", "/v1/reconcile", []byte(`{"problem": {}, "extra": 1}`), http.StatusBadRequest, "INVALID_FORMAT"},
		{"too large", "/v1/reconcile", []byte(`{"problem": "` + strings.Repeat("x", 5000) + `"}`), http.StatusBadRequest, "INVALID_INPUT"},
		{"negative cost", "/v1/reconcile", body(t, recontest.Duplications(), pipeline.Options{Loss: &neg}), http.StatusBadRequest, "INVALID_COST"},
		{"bad option", "/v1/sample", body(t, recontest.Duplications(), pipeline.Options{Workers: -1}), http.StatusBadRequest, "INVALID_INPUT"},
		{"too many clusters", "/v1/cluster", body(t, recontest.Duplications(), pipeline.Options{Clusters: 2}), http.StatusBadRequest, "CLUSTER_COUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.path, tt.data)
			wantStatus(t, rec, tt.status)
			resp := decodeJSON[api.ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v (%s)", resp.Code, tt.wantCode, resp.Message)
			}
			if resp.Status != tt.status {
				t.Errorf("Status = %v, want %v", resp.Status, tt.status)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	h := newServer(t, api.Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	wantStatus(t, rec, http.StatusNotFound)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom.Install(reg)
	t.Cleanup(observability.Reset)

	h := newServer(t, api.Config{Registry: reg})
	wantStatus(t, post(t, h, "/v1/reconcile", body(t, recontest.Duplications(), pipeline.Options{})), http.StatusOK)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	wantStatus(t, rec, http.StatusOK)

	out := rec.Body.String()
	for _, want := range []string{
		`mprscape_http_requests_total{method="POST",route="/v1/reconcile",status="200"} 1`,
		`mprscape_stages_total{stage="reconcile",status="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	h := newServer(t, api.Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	wantStatus(t, rec, http.StatusNotFound)
}
