package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// StockAdjustmentsTotal counts ledger adjustments by transaction type and outcome.
	StockAdjustmentsTotal *prometheus.CounterVec
	// TransactionLogFailures counts stock changes whose history record could not be written.
	TransactionLogFailures prometheus.Counter
	// BatchCheckoutsTotal counts processed batches by type and outcome.
	BatchCheckoutsTotal *prometheus.CounterVec
	// BatchLineLatency records per-line processing latency in milliseconds.
	BatchLineLatency *prometheus.HistogramVec
	// LiveCartPublishTotal counts live cart snapshot writes.
	LiveCartPublishTotal *prometheus.CounterVec
	// LowStockAlertsTotal counts low-stock alert enqueue and delivery outcomes.
	LowStockAlertsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the point-of-sale collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		StockAdjustmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Count of stock adjustments by transaction type and result.",
		}, []string{"type", "result"})
		TransactionLogFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_log_failures_total",
			Help:      "Stock changes applied without a matching transaction record.",
		})
		BatchCheckoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_checkouts_total",
			Help:      "Count of processed sale and restock batches by result.",
		}, []string{"type", "result"})
		BatchLineLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_line_duration_ms",
			Help:      "Latency of a single batch line adjustment in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"type"})
		LiveCartPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_cart_publish_total",
			Help:      "Count of live cart snapshot publications by result.",
		}, []string{"result"})
		LowStockAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Count of low-stock alerts by stage and result.",
		}, []string{"stage", "result"})

		StockAdjustmentsTotal = registerOrReuse(reg, StockAdjustmentsTotal)
		TransactionLogFailures = registerOrReuse(reg, TransactionLogFailures)
		BatchCheckoutsTotal = registerOrReuse(reg, BatchCheckoutsTotal)
		BatchLineLatency = registerOrReuse(reg, BatchLineLatency)
		LiveCartPublishTotal = registerOrReuse(reg, LiveCartPublishTotal)
		LowStockAlertsTotal = registerOrReuse(reg, LowStockAlertsTotal)
	})
}
