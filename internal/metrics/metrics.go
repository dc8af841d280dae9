package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "highload_sender"

var (
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "External messages handed to a submitter, by submitter and result.",
	}, []string{"submitter", "result"})

	ActionsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_sent_total",
		Help:      "Out actions included in submitted messages.",
	})

	MessageOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "message_outcomes_total",
		Help:      "Final statuses of tracked messages.",
	}, []string{"status"})

	MessagesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_expired_total",
		Help:      "Messages that timed out without a transaction.",
	})

	LastQueryID = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_query_id",
		Help:      "Last query id used by the wallet.",
	})

	BatchDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_depth",
		Help:      "Number of nested internal transfers per message.",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		ActionsSent,
		MessageOutcomes,
		MessagesExpired,
		LastQueryID,
		BatchDepth,
	)
}
