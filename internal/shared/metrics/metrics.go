package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auction"

// Metrics groups every collector the service exports.
type Metrics struct {
	BidsAccepted      prometheus.Counter
	ProxyBids         prometheus.Counter
	BidsRejected      *prometheus.CounterVec
	BuyNowExecuted    prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SweepDuration     prometheus.Histogram
	SweepFailures     prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BidsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bid",
			Name:      "accepted_total",
			Help:      "Bids stored, including proxy bids",
		}),
		ProxyBids: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bid",
			Name:      "proxy_total",
			Help:      "Bids placed automatically on behalf of an auto-bid maximum",
		}),
		BidsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bid",
			Name:      "rejected_total",
			Help:      "Bids rejected, by reason",
		}, []string{"reason"}),
		BuyNowExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buy_now",
			Name:      "executed_total",
			Help:      "Auctions sold through buy-now",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "transitions_total",
			Help:      "Auction status transitions",
		}, []string{"from", "to"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations including lock wait",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation", "result"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of a status sweep over open auctions",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		SweepFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "failures_total",
			Help:      "Per-auction failures during status sweeps",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"method", "route"}),
	}
}
