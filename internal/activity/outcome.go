package activity

// OutcomeKind tags the discriminated result of a submission attempt.
type OutcomeKind string

const (
	// OutcomeAccepted means the photo passed classification and the day's
	// category flag was recorded.
	OutcomeAccepted OutcomeKind = "accepted"
	// OutcomeRejected means classification said no; one attempt was consumed.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeAlreadyRecorded means today's flag was already set; nothing mutated.
	OutcomeAlreadyRecorded OutcomeKind = "already_recorded"
	// OutcomeQuotaExceeded means the daily attempt cap is exhausted; nothing mutated.
	OutcomeQuotaExceeded OutcomeKind = "quota_exceeded"
	// OutcomeLockBusy means another submission for the same (group, user) is in flight.
	OutcomeLockBusy OutcomeKind = "lock_busy"
	// OutcomeServiceUnavailable means the classification gateway failed; no
	// attempt was consumed.
	OutcomeServiceUnavailable OutcomeKind = "service_unavailable"
	// OutcomeStoreUnavailable means the shared store failed; the event is dropped.
	OutcomeStoreUnavailable OutcomeKind = "store_unavailable"
)

// Outcome is the resolved result surfaced to the external reply layer.
type Outcome struct {
	Kind OutcomeKind
	// Feedback carries the classifier's explanatory text for Accepted and
	// Rejected outcomes; empty otherwise.
	Feedback string
	// CreditedMentions lists the display names that received a mention credit
	// from an accepted mindfulness submission.
	CreditedMentions []string
}
