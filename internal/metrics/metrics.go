// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the auth layer and the delivery pipeline
type Recorder interface {
	RecordAuthFailure(reason string)
	RecordNotificationCreated(channel string)
	RecordNotificationSent(channel string, latency time.Duration)
	RecordNotificationFailed(channel string)
	RecordNotificationRetried(channel string)
	RecordNotificationCancelled(channel string)
	RecordEnqueueFailure()
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	authFailures    *prometheus.CounterVec
	created         *prometheus.CounterVec
	sent            *prometheus.CounterVec
	failed          *prometheus.CounterVec
	retried         *prometheus.CounterVec
	cancelled       *prometheus.CounterVec
	deliveryLatency prometheus.Histogram
	enqueueFailures prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_auth_failures_total",
			Help: "Rejected credentials by reason",
		}, []string{"reason"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_notifications_created_total",
			Help: "Notifications created by channel",
		}, []string{"channel"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_notifications_sent_total",
			Help: "Notifications delivered by channel",
		}, []string{"channel"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_notifications_failed_total",
			Help: "Notifications that permanently failed by channel",
		}, []string{"channel"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_notifications_retried_total",
			Help: "Delivery retries scheduled by channel",
		}, []string{"channel"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutrition_notifications_cancelled_total",
			Help: "Notifications cancelled by channel",
		}, []string{"channel"}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nutrition_notification_delivery_latency_seconds",
			Help:    "Time from the scheduled delivery time to a successful send",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutrition_notification_enqueue_failures_total",
			Help: "Notifications persisted but not handed to the delivery queue",
		}),
	}

	reg.MustRegister(
		c.authFailures,
		c.created,
		c.sent,
		c.failed,
		c.retried,
		c.cancelled,
		c.deliveryLatency,
		c.enqueueFailures,
	)

	return c
}

func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordNotificationCreated(channel string) {
	c.created.WithLabelValues(channel).Inc()
}

func (c *Collector) RecordNotificationSent(channel string, latency time.Duration) {
	c.sent.WithLabelValues(channel).Inc()
	if latency < 0 {
		latency = 0
	}
	c.deliveryLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordNotificationFailed(channel string) {
	c.failed.WithLabelValues(channel).Inc()
}

func (c *Collector) RecordNotificationRetried(channel string) {
	c.retried.WithLabelValues(channel).Inc()
}

func (c *Collector) RecordNotificationCancelled(channel string) {
	c.cancelled.WithLabelValues(channel).Inc()
}

func (c *Collector) RecordEnqueueFailure() {
	c.enqueueFailures.Inc()
}

// Nop discards every measurement
type Nop struct{}

func (Nop) RecordAuthFailure(string) {}
func (Nop) RecordNotificationCreated(string) {}
func (Nop) RecordNotificationSent(string, time.Duration) {}
func (Nop) RecordNotificationFailed(string) {}
func (Nop) RecordNotificationRetried(string) {}
func (Nop) RecordNotificationCancelled(string) {}
func (Nop) RecordEnqueueFailure() {}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
