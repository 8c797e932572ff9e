// Package metrics holds the prometheus collectors shared by the builder,
// the chain clients and the protocol actions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusTxBuilds          *prometheus.CounterVec
	prometheusBalanceIterations prometheus.Histogram
	prometheusSettlementPasses  *prometheus.CounterVec
	prometheusSubmissions       *prometheus.CounterVec
	prometheusProviderRequests  *prometheus.CounterVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusTxBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_tx_builds",
			Help: "Number of protocol transactions built",
		},
		[]string{
			"action",  // protocol action
			"outcome", // ok or error
		},
	)
	prometheusBalanceIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shuffle_balance_iterations",
			Help:    "Balancing iterations needed to complete a transaction",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 10},
		},
	)
	prometheusSettlementPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_settlement_passes",
			Help: "Number of draft and final settlement builds",
		},
		[]string{"phase"},
	)
	prometheusSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_tx_submissions",
			Help: "Number of transactions submitted to the node",
		},
		[]string{"outcome"},
	)
	prometheusProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuffle_provider_requests",
			Help: "Number of requests made to chain providers",
		},
		[]string{
			"provider", // kupo, ogmios or dbsync
			"outcome",
		},
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func TxBuilt(action string, err error) {
	initPrometheusMetrics()
	prometheusTxBuilds.WithLabelValues(action, outcome(err)).Inc()
}

func BalanceIterations(n int) {
	initPrometheusMetrics()
	prometheusBalanceIterations.Observe(float64(n))
}

func SettlementPass(phase string) {
	initPrometheusMetrics()
	prometheusSettlementPasses.WithLabelValues(phase).Inc()
}

func Submitted(err error) {
	initPrometheusMetrics()
	prometheusSubmissions.WithLabelValues(outcome(err)).Inc()
}

func ProviderRequest(provider string, err error) {
	initPrometheusMetrics()
	prometheusProviderRequests.WithLabelValues(provider, outcome(err)).Inc()
}
