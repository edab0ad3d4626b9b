package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts cart quotes by outcome.
	PricingQuotesTotal *prometheus.CounterVec
	// DiscountRejectionsTotal counts discount rejections by reason.
	DiscountRejectionsTotal *prometheus.CounterVec
	// CheckoutCommitsTotal counts order commits by outcome.
	CheckoutCommitsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of cart pricing quotes by outcome.",
		}, []string{"result"})
		DiscountRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_rejections_total",
			Help:      "Count of rejected discount applications by reason.",
		}, []string{"reason"})
		CheckoutCommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_commits_total",
			Help:      "Count of checkout commit outcomes.",
		}, []string{"result"})

		PricingQuotesTotal = register(reg, PricingQuotesTotal)
		DiscountRejectionsTotal = register(reg, DiscountRejectionsTotal)
		CheckoutCommitsTotal = register(reg, CheckoutCommitsTotal)
	})
}

// ObserveQuote records a quote outcome. reason is empty unless a discount was rejected.
func ObserveQuote(result, reason string) {
	if PricingQuotesTotal != nil {
		PricingQuotesTotal.WithLabelValues(result).Inc()
	}
	if reason != "" && DiscountRejectionsTotal != nil {
		DiscountRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// ObserveCommit records a checkout commit outcome.
func ObserveCommit(result string) {
	if CheckoutCommitsTotal != nil {
		CheckoutCommitsTotal.WithLabelValues(result).Inc()
	}
}
