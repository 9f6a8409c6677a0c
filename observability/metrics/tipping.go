package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TippingMetrics tracks ledger mutations applied by the node.
type TippingMetrics struct {
	operations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	tipsVolume  prometheus.Counter
	feesVolume  prometheus.Counter
	commitTime  prometheus.Histogram
	streamDrops prometheus.Counter
}

var (
	tippingOnce     sync.Once
	tippingRegistry *TippingMetrics
)

// Tipping returns the lazily registered ledger metrics.
func Tipping() *TippingMetrics {
	tippingOnce.Do(func() {
		tippingRegistry = &TippingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_operations_total",
				Help: "Count of ledger mutations by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tipping_rejections_total",
				Help: "Count of rejected ledger mutations by failure reason.",
			}, []string{"operation", "reason"}),
			tipsVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_tip_volume_wei_total",
				Help: "Sum of recorded tip amounts in wei, fees included.",
			}),
			feesVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_fee_volume_wei_total",
				Help: "Sum of fees paid to fee recipients in wei.",
			}),
			commitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "tipping_commit_duration_seconds",
				Help:    "Latency of committing a ledger mutation to storage.",
				Buckets: prometheus.DefBuckets,
			}),
			streamDrops: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tipping_stream_dropped_total",
				Help: "Notifications dropped because a subscriber was not keeping up.",
			}),
		}
		prometheus.MustRegister(
			tippingRegistry.operations,
			tippingRegistry.rejections,
			tippingRegistry.tipsVolume,
			tippingRegistry.feesVolume,
			tippingRegistry.commitTime,
			tippingRegistry.streamDrops,
		)
	})
	return tippingRegistry
}

// ObserveOperation records the outcome of a ledger mutation. An empty reason
// marks success.
func (m *TippingMetrics) ObserveOperation(operation, reason string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if reason == "" {
		m.operations.WithLabelValues(operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "error").Inc()
	m.rejections.WithLabelValues(operation, reason).Inc()
}

// ObserveTip adds a recorded tip and its fee to the volume counters.
func (m *TippingMetrics) ObserveTip(amount, fee *big.Int) {
	if m == nil {
		return
	}
	m.tipsVolume.Add(weiFloat(amount))
	m.feesVolume.Add(weiFloat(fee))
}

// ObserveCommit records how long a commit took.
func (m *TippingMetrics) ObserveCommit(d time.Duration) {
	if m == nil {
		return
	}
	m.commitTime.Observe(d.Seconds())
}

// RecordStreamDrop counts a notification a subscriber missed.
func (m *TippingMetrics) RecordStreamDrop() {
	if m == nil {
		return
	}
	m.streamDrops.Inc()
}

func weiFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
