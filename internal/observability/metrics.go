package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	submissionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "submissions",
		Name:      "outcomes_total",
		Help:      "Submission pipeline results by category and outcome kind.",
	}, []string{"category", "outcome"})
	classificationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracker",
		Subsystem: "classification",
		Name:      "duration_seconds",
		Help:      "Latency of classification gateway calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"category", "status"})
	lockContention = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "locks",
		Name:      "contention_total",
		Help:      "Submissions turned away because the (group, user) lock was held.",
	})
	mentionCredits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "ledger",
		Name:      "mention_credits_total",
		Help:      "Mindfulness mention credits granted to named members.",
	})
)

func init() {
	prometheus.MustRegister(submissionOutcomes, classificationDuration, lockContention, mentionCredits)
}

// RecordSubmissionOutcome counts one resolved submission result.
func RecordSubmissionOutcome(category, outcome string) {
	submissionOutcomes.WithLabelValues(category, outcome).Inc()
}

// RecordClassification observes one gateway round trip.
func RecordClassification(category string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	classificationDuration.WithLabelValues(category, status).Observe(elapsed.Seconds())
}

// RecordLockContention counts a submission rejected by a held lock.
func RecordLockContention() {
	lockContention.Inc()
}

// RecordMentionCredits counts granted mention credits.
func RecordMentionCredits(n int) {
	if n <= 0 {
		return
	}
	mentionCredits.Add(float64(n))
}
