package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutreachMetrics exposes counters/histograms for the conversation pipeline.
type OutreachMetrics struct {
	runsTotal      *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	messagesTotal  *prometheus.CounterVec
	escalatedTotal prometheus.Counter
}

func NewOutreachMetrics(reg prometheus.Registerer) *OutreachMetrics {
	m := &OutreachMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "conversation",
			Name:      "runs_total",
			Help:      "Total graph runs by trigger and outcome",
		}, []string{"trigger", "status"}),
		runLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "conversation",
			Name:      "run_latency_seconds",
			Help:      "Latency of one graph run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "conversation",
			Name:      "messages_total",
			Help:      "Total outbound messages by channel and status",
		}, []string{"channel", "status"}),
		escalatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "conversation",
			Name:      "escalations_total",
			Help:      "Conversations flagged for human attention",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.runLatency, m.messagesTotal, m.escalatedTotal)
	return m
}

func (m *OutreachMetrics) ObserveRun(trigger, status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(trigger, status).Inc()
	m.runLatency.WithLabelValues(trigger).Observe(seconds)
}

func (m *OutreachMetrics) ObserveMessage(channel, status string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, status).Inc()
}

func (m *OutreachMetrics) ObserveEscalation() {
	if m == nil {
		return
	}
	m.escalatedTotal.Inc()
}
