package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	runsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reelforge_runs_started_total",
		Help: "Video pipeline runs accepted for execution.",
	})

	runsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_runs_completed_total",
		Help: "Video pipeline runs finished, by final status.",
	}, []string{"status"})

	stageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_stage_failures_total",
		Help: "Pipeline stage failures, by stage.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(runsStarted, runsCompleted, stageFailures)
}
