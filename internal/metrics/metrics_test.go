package metrics

import "testing"

func TestCollectorsRecordWithoutPanicking(t *testing.T) {
	CallsTotal.WithLabelValues("ch", OutcomeOK).Inc()
	RejectionsTotal.WithLabelValues("ch", "throttled").Inc()
	StageLatencySeconds.WithLabelValues("ch", "transform").Observe(0.001)
	ActiveFormations.WithLabelValues(FormationActive).Set(3)
	MissedExecutionsTotal.WithLabelValues("ch").Inc()
	BreathingStress.Set(0.42)
	BreathingRecuperating.Set(1)
}
