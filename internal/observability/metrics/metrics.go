package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IntakeMetrics exposes counters/histograms for the intake widget.
type IntakeMetrics struct {
	repliesTotal     *prometheus.CounterVec
	replyLatency     *prometheus.HistogramVec
	submissionsTotal *prometheus.CounterVec
	slotsOffered     *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	sessionsTotal    *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "replies",
			Name:      "total",
			Help:      "Automated replies by source (service, fallback)",
		}, []string{"source", "reason"}),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "replies",
			Name:      "latency_seconds",
			Help:      "Latency of reply service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "forms",
			Name:      "submissions_total",
			Help:      "Form submissions by kind and outcome",
		}, []string{"kind", "outcome"}),
		slotsOffered: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "scheduling",
			Name:      "slots_offered",
			Help:      "Open slots offered per selected date",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}, []string{"reference_zone"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "state",
			Name:      "transitions_total",
			Help:      "Intake state machine transitions by event and resulting state",
		}, []string{"event", "state"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Widget mounts by session mode",
		}, []string{"mode"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.repliesTotal, m.replyLatency, m.submissionsTotal, m.slotsOffered, m.transitionsTotal, m.sessionsTotal)
	return m
}

func (m *IntakeMetrics) ObserveReply(source, reason string, latency time.Duration) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(source, reason).Inc()
	if latency > 0 {
		m.replyLatency.WithLabelValues(source).Observe(latency.Seconds())
	}
}

func (m *IntakeMetrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *IntakeMetrics) ObserveSlotsOffered(count int, referenceZone bool) {
	if m == nil {
		return
	}
	label := "false"
	if referenceZone {
		label = "true"
	}
	m.slotsOffered.WithLabelValues(label).Observe(float64(count))
}

func (m *IntakeMetrics) ObserveTransition(event, state string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(event, state).Inc()
}

func (m *IntakeMetrics) ObserveSession(mode string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(mode).Inc()
}
