package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeTimedOut  = "timed_out"
	outcomeTransport = "transport_error"
	outcomeMalformed = "malformed_response"
)

var (
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_job_polls_total",
		Help: "Status checks issued against remote generation jobs",
	}, []string{"kind"})
	outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_job_outcomes_total",
		Help: "Terminal outcomes of remote generation job waits",
	}, []string{"kind", "outcome"})
	waitsInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelforge_job_waits_in_flight",
		Help: "Wait loops currently blocked on a remote job",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(pollsTotal, outcomesTotal, waitsInFlight)
}
