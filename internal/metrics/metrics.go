package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinDecisions counts join attempts by session state and result (allowed|closed).
	JoinDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classportal",
		Name:      "join_decisions_total",
		Help:      "Join attempts by session state and gate result.",
	}, []string{"state", "result"})

	// AttendanceOutcomes counts attendance recording results.
	AttendanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classportal",
		Name:      "attendance_outcomes_total",
		Help:      "Attendance recording outcomes (created, refreshed, skipped, failed).",
	}, []string{"outcome"})

	// LiveViews tracks open session stream connections.
	LiveViews = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "classportal",
		Name:      "live_session_views",
		Help:      "Open session list streams.",
	})
)
