// Package metrics registers the staking core's prometheus counters and
// gauges, the way the reference node's util package builds promauto metrics
// lazily per component (util/aerospike.go) rather than through a generated
// metrics file.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stakingcore",
		Name:      "blocks_committed_total",
		Help:      "Number of Commit calls the consensus driver has completed.",
	})

	TxDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakingcore",
		Name:      "deliver_tx_total",
		Help:      "Number of DeliverTx calls, partitioned by outcome.",
	}, []string{"outcome"})

	ValidatorUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stakingcore",
		Name:      "validator_updates_total",
		Help:      "Number of validator power updates emitted across all EndBlock calls.",
	})

	TotalPower = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakingcore",
		Name:      "total_voting_power",
		Help:      "Total voting power of the effective validator set as of the last EndBlock.",
	})

	CoinbaseBankSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakingcore",
		Name:      "coinbase_bank_size",
		Help:      "Number of UTXOs currently tracked in the CoinBase bank.",
	})
)

// TxOutcome labels the outcome partition of TxDelivered.
type TxOutcome string

const (
	TxAccepted TxOutcome = "accepted"
	TxRejected TxOutcome = "rejected"
)

// RecordDeliverTx increments TxDelivered for the given outcome.
func RecordDeliverTx(outcome TxOutcome) {
	TxDelivered.WithLabelValues(string(outcome)).Inc()
}
