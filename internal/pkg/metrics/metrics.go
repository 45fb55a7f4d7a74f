// Package metrics exposes Prometheus counters for deliveries, broadcasts and consumed events.
package metrics

import (
	"time"

	"github.com/go-notification-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notifications"

// Event outcomes.
const (
	OutcomeHandled    = "handled"
	OutcomeDeadLetter = "dead_letter"
	OutcomeIgnored    = "ignored"
	OutcomeFailed     = "failed"
	OutcomeRetry      = "retry"
)

type Metrics struct {
	deliveries          *prometheus.CounterVec
	broadcastRecipients *prometheus.CounterVec
	broadcasts          *prometheus.CounterVec
	events              *prometheus.CounterVec
	eventDuration       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery channel pushes by notification kind and result.",
		}, []string{"kind", "result"}),
		broadcastRecipients: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients_total",
			Help:      "Broadcast recipients by notification kind and outcome.",
		}, []string{"kind", "outcome"}),
		broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Completed broadcasts by notification kind.",
		}, []string{"kind"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Inbound events by event kind and outcome.",
		}, []string{"event", "outcome"}),
		eventDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handle_seconds",
			Help:      "Time spent handling one inbound event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
	}
}

func (m *Metrics) DeliveryAttempted(kind domain.Kind, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.deliveries.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) BroadcastFinished(kind domain.Kind, res domain.BroadcastResult) {
	k := string(kind)
	m.broadcasts.WithLabelValues(k).Inc()
	m.broadcastRecipients.WithLabelValues(k, "succeeded").Add(float64(res.Succeeded))
	m.broadcastRecipients.WithLabelValues(k, "failed").Add(float64(res.Failed))
	m.broadcastRecipients.WithLabelValues(k, "skipped").Add(float64(res.Skipped))
}

func (m *Metrics) EventConsumed(event, outcome string, took time.Duration) {
	m.events.WithLabelValues(event, outcome).Inc()
	m.eventDuration.WithLabelValues(event).Observe(took.Seconds())
}
