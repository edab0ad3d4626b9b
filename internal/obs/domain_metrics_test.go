package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/obs"
)

func TestDomainMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("toko_pricing", registry)

	obs.ObserveQuote("ok", "")
	obs.ObserveQuote("rejected", "minimum_purchase_not_met")
	obs.ObserveCommit("committed")

	require.Equal(t, float64(1), testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.PricingQuotesTotal.WithLabelValues("rejected")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.DiscountRejectionsTotal.WithLabelValues("minimum_purchase_not_met")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.CheckoutCommitsTotal.WithLabelValues("committed")))
}

func TestParseBucketsCSVSkipsInvalid(t *testing.T) {
	require.Equal(t, []float64{0.1, 0.5, 2}, obs.ParseBucketsCSV("2, x, -1, 0.5, 0.1, 0.5,"))
	require.Nil(t, obs.ParseBucketsCSV("  "))
}
