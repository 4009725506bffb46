// Package metrics exposes prometheus counters for moderation activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	BansRecorded          *prometheus.CounterVec
	ContentPurged         *prometheus.CounterVec
	EscalationsSent       *prometheus.CounterVec
	EscalationsSuppressed prometheus.Counter
	Failures              *prometheus.CounterVec
}

func New() *Collector {
	return &Collector{
		BansRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbans_bans_recorded_total", Help: "Total bans recorded"},
			[]string{"scope"}),

		ContentPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbans_content_purged_total", Help: "Total authored content rows purged"},
			[]string{"collection"}),

		EscalationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbans_escalations_sent_total", Help: "Total escalation notices dispatched"},
			[]string{"transport"}),

		EscalationsSuppressed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "dbans_escalations_suppressed_total", Help: "Escalations skipped because ban_email_enabled is off"}),

		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dbans_escalation_failures_total", Help: "Escalation failures by kind"},
			[]string{"kind"}),
	}
}

// MustRegister attaches every collector to the registry, panicking on
// duplicate registration.
func (c *Collector) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		c.BansRecorded,
		c.ContentPurged,
		c.EscalationsSent,
		c.EscalationsSuppressed,
		c.Failures,
	)
}
