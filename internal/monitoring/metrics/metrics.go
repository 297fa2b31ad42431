package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal tracks checker runs by outcome (ok, error, skipped)
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_checks_total",
			Help: "Total number of checker runs",
		},
		[]string{"check", "outcome"},
	)

	// CheckDuration tracks how long one checker cycle takes
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitality_check_duration_seconds",
			Help:    "Checker cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"check"},
	)

	// FindingsTotal tracks findings reported per kind
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_findings_total",
			Help: "Total number of findings reported by checkers",
		},
		[]string{"kind"},
	)

	// ActiveIssues tracks open issues per kind
	ActiveIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vitality_active_issues",
			Help: "Number of currently open issues",
		},
		[]string{"kind"},
	)

	// NotificationsTotal tracks provider deliveries by result (sent, failed)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_notifications_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"provider", "event_type", "result"},
	)

	// RPCCallsTotal tracks node RPC calls
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitality_rpc_calls_total",
			Help: "Total number of node RPC calls",
		},
		[]string{"method", "result"},
	)

	// RPCLatency tracks node RPC latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitality_rpc_latency_seconds",
			Help:    "Node RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// NodeBlockHeight tracks the block height reported by the node
	NodeBlockHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_node_block_height",
			Help: "Block height reported by getinfo",
		},
	)

	// ProbeSuccess is 1 when the last reachability probe succeeded
	ProbeSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vitality_probe_success",
			Help: "Result of the last reachability probe (1 = ok)",
		},
	)
)
