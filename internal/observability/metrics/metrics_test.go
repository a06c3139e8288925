package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.ObserveReply("fallback", "timeout", 12*time.Second)
	m.ObserveReply("fallback", "timeout", 0)
	m.ObserveReply("service", "ok", 300*time.Millisecond)
	m.ObserveSubmission("appointment", "confirmed")
	m.ObserveSlotsOffered(3, false)
	m.ObserveTransition("bot_replied", "appointment_form_open")
	m.ObserveSession("fresh_load")

	families, err := reg.Gather()
	require.NoError(t, err)

	got := counterValue(t, families, "intake_replies_total", map[string]string{"source": "fallback", "reason": "timeout"})
	assert.Equal(t, float64(2), got)
	got = counterValue(t, families, "intake_forms_submissions_total", map[string]string{"kind": "appointment", "outcome": "confirmed"})
	assert.Equal(t, float64(1), got)
}

func TestIntakeMetricsNilSafe(t *testing.T) {
	var m *IntakeMetrics
	m.ObserveReply("service", "ok", time.Second)
	m.ObserveSubmission("contact", "failed")
	m.ObserveSlotsOffered(0, true)
	m.ObserveTransition("mounted", "chatting")
	m.ObserveSession("continuing")
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}
