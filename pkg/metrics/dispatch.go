package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks reminder delivery outcomes per channel.
type DispatchMetrics struct {
	sent    *prometheus.CounterVec
	failed  *prometheus.CounterVec
	skipped *prometheus.CounterVec
}

// NewDispatchMetrics registers the reminder dispatch metrics.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certtracker",
		Subsystem: "reminders",
		Name:      "sent_total",
		Help:      "Reminders delivered, labeled by channel.",
	}, []string{"channel"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certtracker",
		Subsystem: "reminders",
		Name:      "failed_total",
		Help:      "Reminder deliveries that exhausted retries, labeled by channel.",
	}, []string{"channel"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certtracker",
		Subsystem: "reminders",
		Name:      "skipped_total",
		Help:      "Reminders skipped, labeled by reason (already_sent, plan_gated, missing_recipient).",
	}, []string{"reason"})
	reg.MustRegister(sent, failed, skipped)
	return &DispatchMetrics{sent: sent, failed: failed, skipped: skipped}
}

// IncSent increments the delivered counter for a channel.
func (d *DispatchMetrics) IncSent(channel string) {
	if d == nil || d.sent == nil {
		return
	}
	d.sent.WithLabelValues(orUnknown(channel)).Inc()
}

// IncFailed increments the failure counter for a channel.
func (d *DispatchMetrics) IncFailed(channel string) {
	if d == nil || d.failed == nil {
		return
	}
	d.failed.WithLabelValues(orUnknown(channel)).Inc()
}

// IncSkipped increments the skipped counter for a reason.
func (d *DispatchMetrics) IncSkipped(reason string) {
	if d == nil || d.skipped == nil {
		return
	}
	d.skipped.WithLabelValues(orUnknown(reason)).Inc()
}
