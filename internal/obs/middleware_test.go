package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko_pricing", []float64{0.01, 0.1}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	ctx, info := obs.WithRequestInfo(req.Context())
	info.SetRoute("/health/ready")
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestRequestLoggerUsesRouteAndCustomerFromInnerHandlers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(obs.TrackRequest)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		obs.RequestInfoFrom(r.Context()).SetCustomer("cust-1")
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/carts/42", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "/carts/{id}", entry["route"])
	require.Equal(t, "/carts/42", entry["path"])
	require.Equal(t, "cust-1", entry["customer_id"])
}

func TestRequestInfoIsNilSafe(t *testing.T) {
	info := obs.RequestInfoFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.Nil(t, info)
	info.SetRoute("/x")
	info.SetCustomer("c")
	require.Empty(t, info.Route())
	require.Empty(t, info.Customer())
}
