package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siteflow",
		Subsystem: "outbox",
		Name:      "deliveries_total",
		Help:      "Delivery attempts by outcome.",
	}, []string{"result"})

	backlogGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "siteflow",
		Subsystem: "outbox",
		Name:      "backlog",
		Help:      "Outbox events by status.",
	}, []string{"status"})

	deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "siteflow",
		Subsystem: "outbox",
		Name:      "delivery_duration_seconds",
		Help:      "Wall time of one delivery attempt.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveBacklog publishes per-status event counts as gauges.
func ObserveBacklog(counts map[string]int64) {
	for _, status := range []string{StatusPending, StatusSent, StatusFailed} {
		backlogGauge.WithLabelValues(status).Set(float64(counts[status]))
	}
}
