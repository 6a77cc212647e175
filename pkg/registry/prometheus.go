package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	// blockHeight prometheus metric.
	blockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Current registry block height",
			Name:      "current_block_height",
			Namespace: "abelian",
		},
	)
	// mempoolSize prometheus metric.
	mempoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of submitted but not yet confirmed transactions",
			Name:      "mempool_size",
			Namespace: "abelian",
		},
	)
	// confirmedTxs prometheus metric.
	confirmedTxs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of confirmed transactions",
			Name:      "confirmed_transactions_total",
			Namespace: "abelian",
		},
		[]string{"method", "vmstate"},
	)
	// mintedTokens prometheus metric.
	mintedTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of tokens minted",
			Name:      "minted_tokens_total",
			Namespace: "abelian",
		},
	)
)

func init() {
	prometheus.MustRegister(
		blockHeight,
		mempoolSize,
		confirmedTxs,
		mintedTokens,
	)
}

func updateBlockHeightMetric(h uint32) {
	blockHeight.Set(float64(h))
}

func updateMempoolMetric(n int) {
	mempoolSize.Set(float64(n))
}

func addConfirmedTxMetric(r *Receipt) {
	confirmedTxs.WithLabelValues(r.Method.String(), r.State.String()).Inc()
	if r.State == HaltState && r.TokenID != nil {
		mintedTokens.Inc()
	}
}
