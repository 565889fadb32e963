package planner

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phillip-england/staffplan/internal/recommend"
)

var (
	recommendationsApplied = sync.OnceValue(func() *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffplan",
			Name:      "recommendations_applied_total",
			Help:      "Accepted weather staffing recommendations by action.",
		}, []string{"action"})
	})

	workflowDecisions = sync.OnceValue(func() *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffplan",
			Name:      "workflow_transitions_total",
			Help:      "Exception request and next-week approval transitions.",
		}, []string{"kind", "outcome"})
	})
)

func recordRecommendation(action recommend.Action) {
	recommendationsApplied().WithLabelValues(string(action)).Inc()
}

func recordDecision(kind, outcome string) {
	workflowDecisions().WithLabelValues(kind, outcome).Inc()
}
