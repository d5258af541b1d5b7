package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_rounds_total",
		Help: "Rounds closed, by outcome",
	}, []string{"outcome"})

	CurrentPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "auction_current_price",
		Help: "Displayed price of the running round",
	}, []string{"lot"})

	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_ticks_total",
		Help: "Price ticks evaluated by the engine",
	})

	SettleConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_settle_conflicts_total",
		Help: "Settle attempts that lost the race to another caller",
	}, []string{"source"})

	HumanActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_human_actions_total",
		Help: "Human actions by result",
	}, []string{"action", "result"})

	PolicyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_policy_errors_total",
		Help: "Bidder policy evaluations that failed and were skipped",
	}, []string{"strategy"})

	DealRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_deal_records_total",
		Help: "Deal record writes by result",
	}, []string{"result"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auction_http_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
